// Package socialn is the authentication engine of the socialn server: account
// registration, password login, rotating refresh sessions and access-token
// validation.
//
// Engine methods are safe for concurrent use after [Builder.Build]. Sessions
// and rate-limit counters live in Redis; user accounts come from a
// caller-supplied [UserProvider] (see store.AuthProvider).
package socialn
