// Package httpapi is the socialn REST surface: a chi router over the auth
// engine, the store and media storage.
package httpapi
