// Package flows holds the orchestration for each Engine operation: register,
// login, refresh, validate and logout.
//
// Each Run function takes a dependency struct and returns a result carrying a
// failure kind, so the Engine maps failures to its own sentinel errors,
// metrics and audit events. Flows hold no state between calls and do not
// import the root package.
package flows
