// Package client is a Go client for the socialn REST API.
//
// Every request carries the stored access token as a bearer header. When a
// response comes back 401, the client refreshes the access token once, using
// the HTTP-only refresh cookie held in its cookie jar, and resubmits the
// request. Concurrent 401s share a single in-flight refresh: later callers
// queue behind it and are settled together, in arrival order, with its
// result. A failed refresh clears the stored token and fires
// Config.OnSessionExpired.
package client
