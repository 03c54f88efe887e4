package socialn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/socialn/socialn/internal"
	internalaudit "github.com/socialn/socialn/internal/audit"
	"github.com/socialn/socialn/internal/flows"
	"github.com/socialn/socialn/internal/rate"
	"github.com/socialn/socialn/jwt"
	"github.com/socialn/socialn/password"
	"github.com/socialn/socialn/session"
)

// Engine is the authentication engine. Build it with [Builder].
type Engine struct {
	config   Config
	logger   *zap.Logger
	users    UserProvider
	sessions *session.Store
	limiter  *rate.Limiter
	jwt      *jwt.Manager
	hasher   *password.Hasher
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	now      func() time.Time
}

// AccessTTL is the lifetime of issued access tokens.
func (e *Engine) AccessTTL() time.Duration { return e.config.JWT.AccessTTL }

// RefreshTTL is the lifetime of a refresh session; the refresh cookie uses it
// as Max-Age.
func (e *Engine) RefreshTTL() time.Duration { return e.config.JWT.RefreshTTL }

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) warn(msg string, kv ...any) {
	e.logger.Sugar().Warnw(msg, kv...)
}

func isDisabled(status uint8) bool {
	return AccountStatus(status) == AccountDisabled
}

func toFlowUser(u UserRecord) flows.UserRecord {
	return flows.UserRecord{
		UserID:       u.UserID,
		UserName:     u.UserName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Status:       uint8(u.Status),
	}
}

func fromFlowUser(u flows.UserRecord) UserRecord {
	return UserRecord{
		UserID:       u.UserID,
		UserName:     u.UserName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Status:       AccountStatus(u.Status),
	}
}

func (e *Engine) issueDeps() flows.IssueDeps {
	return flows.IssueDeps{
		Now:             e.now,
		SessionLifetime: e.config.JWT.RefreshTTL,
		NewSessionID: func() (string, error) {
			sid, err := internal.NewSessionID()
			if err != nil {
				return "", err
			}
			return sid.String(), nil
		},
		NewRefreshSecret:   internal.NewRefreshSecret,
		HashRefreshSecret:  internal.HashRefreshSecret,
		EncodeRefreshToken: internal.EncodeRefreshToken,
		IssueAccessToken:   e.jwt.CreateAccess,
		SessionStore:       e.sessions,
	}
}

// Register creates an account and logs it in.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunRegister(ctx, flows.RegisterInput{
		UserName: in.UserName,
		FullName: in.FullName,
		Email:    in.Email,
		Password: in.Password,
	}, flows.RegisterDeps{
		HashPassword: e.hasher.Hash,
		CreateUser: func(ctx context.Context, in flows.RegisterInput, hash string) (flows.UserRecord, error) {
			u, err := e.users.CreateUser(ctx, CreateUserInput{
				UserName:     in.UserName,
				FullName:     in.FullName,
				Email:        in.Email,
				PasswordHash: hash,
			})
			return toFlowUser(u), err
		},
		Issue: e.issueDeps(),
	})

	var err error
	switch res.Failure {
	case flows.RegisterFailureNone:
	case flows.RegisterFailureInvalid:
		err = ErrInvalidInput
	case flows.RegisterFailurePasswordPolicy:
		err = errors.Join(ErrPasswordPolicy, res.Err)
	case flows.RegisterFailureCreate:
		if errors.Is(res.Err, ErrEmailTaken) || errors.Is(res.Err, ErrUserNameTaken) {
			err = res.Err
		} else {
			err = fmt.Errorf("%w: %v", ErrAccountCreationUnavailable, res.Err)
		}
	default:
		err = ErrSessionCreationFailed
		e.warn("register session issue failed", "user_id", res.User.UserID, "error", res.Err)
	}

	if err != nil {
		e.metrics.Inc(EventRegisterFailure)
		e.emitAudit(ctx, EventRegisterFailure, false, res.User.UserID, "", err, nil)
		return nil, err
	}

	e.metrics.Inc(EventRegisterSuccess)
	e.metrics.Inc(EventSessionCreated)
	e.emitAudit(ctx, EventRegisterSuccess, true, res.User.UserID, res.Session.SessionID, nil, nil)

	return &LoginResult{
		AccessToken:  res.Session.AccessToken,
		RefreshToken: res.Session.RefreshToken,
		SessionID:    res.Session.SessionID,
		User:         fromFlowUser(res.User),
	}, nil
}

// Login authenticates an email or user name with a password.
func (e *Engine) Login(ctx context.Context, identifier, pass string) (*LoginResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	deps := flows.LoginDeps{
		ClientIP:           clientIPFromContext,
		CheckLoginRate:     e.limiter.CheckLogin,
		IncrementLoginRate: e.limiter.IncrementLogin,
		ResetLoginRate:     e.limiter.ResetLogin,
		IsRateLimited: func(err error) bool {
			return errors.Is(err, rate.ErrRateLimited)
		},
		GetUserByIdentifier: func(ctx context.Context, identifier string) (flows.UserRecord, error) {
			u, err := e.users.GetUserByIdentifier(ctx, identifier)
			return toFlowUser(u), err
		},
		VerifyPassword: e.hasher.Verify,
		IsDisabled:     isDisabled,
		Issue:          e.issueDeps(),
		Warn:           e.warn,
	}
	if e.config.Password.UpgradeOnLogin {
		deps.PasswordNeedsUpgrade = e.hasher.NeedsRehash
		deps.HashPassword = e.hasher.Hash
		deps.UpdatePasswordHash = func(ctx context.Context, userID, hash string) error {
			if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
				return err
			}
			e.metrics.Inc(EventPasswordRehashed)
			return nil
		}
	}

	res := flows.RunLogin(ctx, identifier, pass, deps)
	meta := func() map[string]string {
		m := map[string]string{"identifier": res.Identifier}
		if res.Reason != "" {
			m["reason"] = res.Reason
		}
		return m
	}

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metrics.Inc(EventLoginRateLimited)
		e.emitAudit(ctx, EventLoginRateLimited, false, "", "", ErrLoginRateLimited, meta)
		return nil, ErrLoginRateLimited
	case flows.LoginFailureLimiterUnavailable:
		e.metrics.Inc(EventLoginFailure)
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, res.Err)
	case flows.LoginFailureInvalidCredentials:
		e.metrics.Inc(EventLoginFailure)
		e.emitAudit(ctx, EventLoginFailure, false, res.User.UserID, "", ErrInvalidCredentials, meta)
		return nil, ErrInvalidCredentials
	case flows.LoginFailureAccountDisabled:
		e.metrics.Inc(EventLoginFailure)
		e.emitAudit(ctx, EventLoginFailure, false, res.User.UserID, "", ErrAccountDisabled, meta)
		return nil, ErrAccountDisabled
	default:
		e.metrics.Inc(EventLoginFailure)
		e.warn("login session issue failed", "user_id", res.User.UserID, "error", res.Err)
		return nil, ErrSessionCreationFailed
	}

	e.metrics.Inc(EventLoginSuccess)
	e.metrics.Inc(EventSessionCreated)
	e.emitAudit(ctx, EventLoginSuccess, true, res.User.UserID, res.Session.SessionID, nil, nil)

	return &LoginResult{
		AccessToken:  res.Session.AccessToken,
		RefreshToken: res.Session.RefreshToken,
		SessionID:    res.Session.SessionID,
		User:         fromFlowUser(res.User),
	}, nil
}

// Refresh rotates the refresh token and returns a new access/refresh pair.
// Presenting a rotated-out token destroys the session and returns
// ErrRefreshReuse.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if e == nil {
		return "", "", ErrEngineNotReady
	}

	deps := flows.RefreshDeps{
		DecodeRefreshToken:  internal.DecodeRefreshToken,
		NewRefreshSecret:    internal.NewRefreshSecret,
		HashRefreshSecret:   internal.HashRefreshSecret,
		EncodeRefreshToken:  internal.EncodeRefreshToken,
		IssueAccessToken:    e.jwt.CreateAccess,
		IsDisabled:          isDisabled,
		SessionStore:        e.sessions,
		RefreshHashMismatch: session.ErrRefreshHashMismatch,
		RedisNil:            redis.Nil,
	}
	if e.config.Security.EnableRefreshThrottle {
		deps.RateLimiter = e.limiter
	}

	res := flows.RunRefresh(ctx, refreshToken, deps)

	var err error
	event := EventRefreshFailure
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metrics.Inc(EventRefreshSuccess)
		e.emitAudit(ctx, EventRefreshSuccess, true, res.UserID, res.SessionID, nil, nil)
		return res.AccessToken, res.RefreshToken, nil
	case flows.RefreshFailureDecode:
		err = ErrRefreshInvalid
	case flows.RefreshFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRateLimited) {
			event = EventRefreshRateLimited
			err = ErrRefreshRateLimited
		} else {
			err = fmt.Errorf("%w: %v", ErrRedisUnavailable, res.Err)
		}
	case flows.RefreshFailureReuse:
		event = EventRefreshReuse
		err = ErrRefreshReuse
	case flows.RefreshFailureSessionNotFound:
		err = ErrSessionNotFound
	case flows.RefreshFailureAccountDisabled:
		err = ErrAccountDisabled
	case flows.RefreshFailureRotate:
		if errors.Is(res.Err, session.ErrRedisUnavailable) {
			err = fmt.Errorf("%w: %v", ErrRedisUnavailable, res.Err)
		} else {
			err = ErrRefreshInvalid
		}
	default:
		e.warn("refresh issue failed", "session_id", res.SessionID, "error", res.Err)
		err = ErrRefreshInvalid
	}

	e.metrics.Inc(event)
	e.emitAudit(ctx, event, false, res.UserID, res.SessionID, err, nil)
	return "", "", err
}

// Validate checks an access token. In ModeStrict it also confirms the session
// is still alive.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	res := flows.RunValidate(ctx, accessToken, flows.ValidateDeps{
		ParseAccess:      e.jwt.ParseAccess,
		Strict:           e.config.ValidationMode == ModeStrict,
		IsDisabled:       isDisabled,
		SessionStore:     e.sessions,
		RedisUnavailable: session.ErrRedisUnavailable,
	})

	switch res.Failure {
	case flows.ValidateFailureNone:
		return &AuthResult{UserID: res.Claims.UID, SessionID: res.Claims.SID}, nil
	case flows.ValidateFailureBackendDown:
		e.metrics.Inc(EventValidateFailure)
		return nil, ErrStrictBackendDown
	case flows.ValidateFailureSessionNotFound:
		e.metrics.Inc(EventValidateFailure)
		return nil, ErrSessionNotFound
	case flows.ValidateFailureAccountDisabled:
		e.metrics.Inc(EventValidateFailure)
		return nil, ErrAccountDisabled
	default:
		e.metrics.Inc(EventValidateFailure)
		return nil, ErrTokenInvalid
	}
}

// Logout deletes one session.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := flows.RunLogout(ctx, sessionID, e.sessions); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	e.metrics.Inc(EventLogout)
	e.emitAudit(ctx, EventLogout, true, "", sessionID, nil, nil)
	return nil
}

// LogoutByAccessToken deletes the session an access token belongs to.
func (e *Engine) LogoutByAccessToken(ctx context.Context, accessToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	res := flows.RunLogoutByAccessToken(ctx, accessToken, e.jwt.ParseAccess, e.sessions)
	if res.Err != nil {
		if errors.Is(res.Err, jwt.ErrInvalidToken) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, res.Err)
	}
	e.metrics.Inc(EventLogout)
	e.emitAudit(ctx, EventLogout, true, res.UserID, res.SessionID, nil, nil)
	return nil
}

// LogoutByRefreshToken deletes the session a refresh token names. The secret
// is not checked, so a stale cookie still ends its session.
func (e *Engine) LogoutByRefreshToken(ctx context.Context, refreshToken string) error {
	sessionID, _, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return ErrRefreshInvalid
	}
	return e.Logout(ctx, sessionID)
}

// LogoutAll deletes every session of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := flows.RunLogoutAll(ctx, userID, e.sessions); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	e.metrics.Inc(EventLogoutAll)
	e.emitAudit(ctx, EventLogoutAll, true, userID, "", nil, nil)
	return nil
}

// LogoutOthers deletes every session of userID except keepSessionID, e.g.
// after a password change made from that session.
func (e *Engine) LogoutOthers(ctx context.Context, userID, keepSessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := flows.RunLogoutOthers(ctx, userID, keepSessionID, e.sessions); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	e.metrics.Inc(EventLogoutAll)
	e.emitAudit(ctx, EventLogoutAll, true, userID, keepSessionID, nil, nil)
	return nil
}

// ActiveSessionCount returns how many sessions are indexed for userID.
func (e *Engine) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	return e.sessions.ActiveSessionCount(ctx, userID)
}

// HashPassword hashes a new password with the configured argon2id params.
func (e *Engine) HashPassword(pass string) (string, error) {
	hash, err := e.hasher.Hash(pass)
	if err != nil {
		return "", errors.Join(ErrPasswordPolicy, err)
	}
	return hash, nil
}

// Ping checks Redis availability.
func (e *Engine) Ping(ctx context.Context) error {
	if _, err := e.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
