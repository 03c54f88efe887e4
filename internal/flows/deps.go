package flows

import (
	"context"
	"time"

	"github.com/socialn/socialn/session"
)

// UserRecord is the flow-local view of a user account.
type UserRecord struct {
	UserID       string
	UserName     string
	Email        string
	PasswordHash string
	Status       uint8
}

// SessionStore is the session surface the flows need.
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) error
	DeleteOthersForUser(ctx context.Context, userID, keep string) error
	RotateRefreshHash(ctx context.Context, sessionID string, providedHash, nextHash [32]byte) (*session.Session, error)
}

// IssueDeps is shared by login and register: everything needed to open a new
// refresh session and mint its first token pair.
type IssueDeps struct {
	Now                func() time.Time
	SessionLifetime    time.Duration
	NewSessionID       func() (string, error)
	NewRefreshSecret   func() ([32]byte, error)
	HashRefreshSecret  func([32]byte) [32]byte
	EncodeRefreshToken func(string, [32]byte) (string, error)
	IssueAccessToken   func(userID, sessionID string) (string, error)
	SessionStore       SessionStore
}

// IssuedSession is a freshly created session and its token pair.
type IssuedSession struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
}

// IssueSession saves a new session for user and returns its tokens.
func IssueSession(ctx context.Context, user UserRecord, deps IssueDeps) (IssuedSession, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	sid, err := deps.NewSessionID()
	if err != nil {
		return IssuedSession{}, err
	}
	secret, err := deps.NewRefreshSecret()
	if err != nil {
		return IssuedSession{}, err
	}

	now := deps.Now()
	sess := &session.Session{
		SessionID:   sid,
		UserID:      user.UserID,
		Status:      user.Status,
		RefreshHash: deps.HashRefreshSecret(secret),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(deps.SessionLifetime).Unix(),
	}
	if err := deps.SessionStore.Save(ctx, sess, deps.SessionLifetime); err != nil {
		return IssuedSession{}, err
	}

	access, err := deps.IssueAccessToken(user.UserID, sid)
	if err != nil {
		_ = deps.SessionStore.Delete(ctx, sid)
		return IssuedSession{}, err
	}
	refresh, err := deps.EncodeRefreshToken(sid, secret)
	if err != nil {
		_ = deps.SessionStore.Delete(ctx, sid)
		return IssuedSession{}, err
	}

	return IssuedSession{SessionID: sid, AccessToken: access, RefreshToken: refresh}, nil
}
