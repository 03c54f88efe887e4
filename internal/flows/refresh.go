package flows

import (
	"context"
	"errors"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureRateLimited
	RefreshFailureNextSecret
	RefreshFailureReuse
	RefreshFailureSessionNotFound
	RefreshFailureRotate
	RefreshFailureAccountDisabled
	RefreshFailureIssueAccess
	RefreshFailureEncode
)

// RefreshResult carries either the rotated token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	SessionID    string
	UserID       string
	AccessToken  string
	RefreshToken string
}

type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, sessionID string) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	DecodeRefreshToken  func(string) (string, [32]byte, error)
	NewRefreshSecret    func() ([32]byte, error)
	HashRefreshSecret   func([32]byte) [32]byte
	EncodeRefreshToken  func(string, [32]byte) (string, error)
	IssueAccessToken    func(userID, sessionID string) (string, error)
	IsDisabled          func(status uint8) bool
	RateLimiter         RefreshRateLimiter
	SessionStore        SessionStore
	RefreshHashMismatch error
	RedisNil            error
}

// RunRefresh rotates the refresh secret of the session named by the token and
// issues a new pair. A stale secret destroys the session.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	sessionID, providedSecret, err := deps.DecodeRefreshToken(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRefresh(ctx, sessionID); err != nil {
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, SessionID: sessionID}
		}
	}

	nextSecret, err := deps.NewRefreshSecret()
	if err != nil {
		return RefreshResult{Failure: RefreshFailureNextSecret, Err: err, SessionID: sessionID}
	}

	sess, err := deps.SessionStore.RotateRefreshHash(
		ctx,
		sessionID,
		deps.HashRefreshSecret(providedSecret),
		deps.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		switch {
		case deps.RefreshHashMismatch != nil && errors.Is(err, deps.RefreshHashMismatch):
			return RefreshResult{Failure: RefreshFailureReuse, Err: err, SessionID: sessionID}
		case deps.RedisNil != nil && errors.Is(err, deps.RedisNil):
			return RefreshResult{Failure: RefreshFailureSessionNotFound, Err: err, SessionID: sessionID}
		default:
			return RefreshResult{Failure: RefreshFailureRotate, Err: err, SessionID: sessionID}
		}
	}

	if deps.IsDisabled != nil && deps.IsDisabled(sess.Status) {
		_ = deps.SessionStore.Delete(ctx, sess.SessionID)
		return RefreshResult{Failure: RefreshFailureAccountDisabled, SessionID: sess.SessionID, UserID: sess.UserID}
	}

	access, err := deps.IssueAccessToken(sess.UserID, sess.SessionID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, SessionID: sess.SessionID, UserID: sess.UserID}
	}

	refresh, err := deps.EncodeRefreshToken(sess.SessionID, nextSecret)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureEncode, Err: err, SessionID: sess.SessionID, UserID: sess.UserID}
	}

	return RefreshResult{
		SessionID:    sess.SessionID,
		UserID:       sess.UserID,
		AccessToken:  access,
		RefreshToken: refresh,
	}
}
