// Package session stores refresh sessions in Redis and performs the atomic
// refresh-secret rotation that backs reuse detection.
//
// Sessions are stored as a compact binary blob keyed by session ID, with a
// per-user set index so that logout-all can find every session of a user.
// The package does not parse access tokens or make authorization decisions.
package session
