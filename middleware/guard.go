package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/socialn/socialn"
)

// Response messages for rejected requests.
const (
	MessageMissingToken   = "Missing or invalid token"
	MessageInvalidToken   = "Invalid or expired token"
	MessageAuthBackendOff = "Authentication backend unavailable"
)

// Validator is satisfied by *socialn.Engine.
type Validator interface {
	Validate(ctx context.Context, accessToken string) (*socialn.AuthResult, error)
}

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*socialn.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*socialn.AuthResult)
	return res, ok
}

// WithAuthResult returns ctx carrying res. Handlers under test use it to
// skip the guard.
func WithAuthResult(ctx context.Context, res *socialn.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard requires a valid bearer token.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok || v == nil {
				writeMessage(w, http.StatusUnauthorized, MessageMissingToken)
				return
			}

			res, err := v.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, socialn.ErrStrictBackendDown) {
					writeMessage(w, http.StatusServiceUnavailable, MessageAuthBackendOff)
					return
				}
				writeMessage(w, http.StatusUnauthorized, MessageInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// Optional attaches the caller when a valid bearer token is present. Invalid
// or missing tokens are ignored.
func Optional(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := BearerToken(r.Header.Get("Authorization")); ok && v != nil {
				if res, err := v.Validate(r.Context(), token); err == nil {
					r = r.WithContext(WithAuthResult(r.Context(), res))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
