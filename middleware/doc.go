// Package middleware adapts Engine validation to net/http.
//
// [Guard] rejects requests without a valid bearer token; [Optional] attaches
// the caller when a valid token is present and lets anonymous requests
// through. Both put the *socialn.AuthResult on the request context, read it
// back with [AuthResultFromContext].
package middleware
