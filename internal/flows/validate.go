package flows

import (
	"context"
	"errors"

	"github.com/socialn/socialn/jwt"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureUnauthorized
	ValidateFailureSessionNotFound
	ValidateFailureBackendDown
	ValidateFailureAccountDisabled
)

// ValidateResult returns either claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.AccessClaims
}

// ValidateDeps captures validation dependencies. SessionStore is only
// consulted when Strict is set.
type ValidateDeps struct {
	ParseAccess      func(string) (*jwt.AccessClaims, error)
	Strict           bool
	IsDisabled       func(status uint8) bool
	SessionStore     SessionStore
	RedisUnavailable error
}

// RunValidate verifies the access token and, in strict mode, that its session
// is still alive and owned by the same user.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.ParseAccess(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureUnauthorized, Err: err}
	}
	if !deps.Strict {
		return ValidateResult{Claims: claims}
	}

	sess, err := deps.SessionStore.Get(ctx, claims.SID)
	if err != nil {
		if deps.RedisUnavailable != nil && errors.Is(err, deps.RedisUnavailable) {
			return ValidateResult{Failure: ValidateFailureBackendDown, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureSessionNotFound, Err: err}
	}
	if sess.UserID != claims.UID {
		return ValidateResult{Failure: ValidateFailureSessionNotFound}
	}
	if deps.IsDisabled != nil && deps.IsDisabled(sess.Status) {
		_ = deps.SessionStore.Delete(ctx, claims.SID)
		return ValidateResult{Failure: ValidateFailureAccountDisabled}
	}
	return ValidateResult{Claims: claims}
}
