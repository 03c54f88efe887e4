// Package jwt issues and verifies the short-lived access tokens that clients
// attach as bearer credentials.
//
// Tokens carry the user ID and the refresh-session ID they were minted for, so
// strict validation can confirm the session still exists and logout can target
// the right session from an access token alone.
package jwt
