package flows

import (
	"context"

	"github.com/socialn/socialn/jwt"
)

// LogoutByAccessResult names the session a logout-by-token targeted.
type LogoutByAccessResult struct {
	UserID    string
	SessionID string
	Err       error
}

func RunLogout(ctx context.Context, sessionID string, store SessionStore) error {
	return store.Delete(ctx, sessionID)
}

func RunLogoutAll(ctx context.Context, userID string, store SessionStore) error {
	return store.DeleteAllForUser(ctx, userID)
}

// RunLogoutOthers ends every session of userID except keepSessionID. An empty
// keepSessionID ends them all.
func RunLogoutOthers(ctx context.Context, userID, keepSessionID string, store SessionStore) error {
	if keepSessionID == "" {
		return store.DeleteAllForUser(ctx, userID)
	}
	return store.DeleteOthersForUser(ctx, userID, keepSessionID)
}

// RunLogoutByAccessToken deletes the session an access token was minted for.
// Expired tokens are rejected by parse, so callers holding only an expired
// token should log out with the refresh token instead.
func RunLogoutByAccessToken(ctx context.Context, tokenStr string, parse func(string) (*jwt.AccessClaims, error), store SessionStore) LogoutByAccessResult {
	claims, err := parse(tokenStr)
	if err != nil {
		return LogoutByAccessResult{Err: err}
	}
	return LogoutByAccessResult{
		UserID:    claims.UID,
		SessionID: claims.SID,
		Err:       store.Delete(ctx, claims.SID),
	}
}
