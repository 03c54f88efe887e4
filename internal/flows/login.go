package flows

import (
	"context"
	"strings"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureLimiterUnavailable
	LoginFailureInvalidCredentials
	LoginFailureAccountDisabled
	LoginFailureIssue
)

// LoginResult carries either the issued session or failure metadata.
type LoginResult struct {
	Failure    LoginFailureKind
	Err        error
	Reason     string
	Identifier string
	User       UserRecord
	Session    IssuedSession
}

// LoginDeps captures login flow dependencies. The rate hooks are optional.
type LoginDeps struct {
	ClientIP func(context.Context) string

	CheckLoginRate     func(ctx context.Context, identifier, ip string) error
	IncrementLoginRate func(ctx context.Context, identifier, ip string) error
	ResetLoginRate     func(ctx context.Context, identifier string) error
	IsRateLimited      func(error) bool

	GetUserByIdentifier  func(ctx context.Context, identifier string) (UserRecord, error)
	VerifyPassword       func(password, encoded string) (bool, error)
	PasswordNeedsUpgrade func(encoded string) (bool, error)
	HashPassword         func(password string) (string, error)
	UpdatePasswordHash   func(ctx context.Context, userID, hash string) error
	IsDisabled           func(status uint8) bool

	Issue IssueDeps
	Warn  func(msg string, kv ...any)
}

// NormalizeIdentifier trims and lowercases an email or user name.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// RunLogin authenticates identifier/password and opens a session.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	identifier = NormalizeIdentifier(identifier)
	ip := ""
	if deps.ClientIP != nil {
		ip = deps.ClientIP(ctx)
	}

	result := LoginResult{Identifier: identifier}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
			result.Err = err
			result.Failure = LoginFailureLimiterUnavailable
			if deps.IsRateLimited != nil && deps.IsRateLimited(err) {
				result.Failure = LoginFailureRateLimited
			}
			return result
		}
	}

	fail := func(reason string, user UserRecord) LoginResult {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, identifier, ip); err != nil {
				deps.Warn("login rate increment failed", "error", err)
			}
		}
		result.Failure = LoginFailureInvalidCredentials
		result.Reason = reason
		result.User = user
		return result
	}

	if identifier == "" || password == "" {
		return fail("empty_credentials", UserRecord{})
	}

	user, err := deps.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return fail("user_not_found", UserRecord{})
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return fail("password_mismatch", user)
	}

	if deps.IsDisabled != nil && deps.IsDisabled(user.Status) {
		result.Failure = LoginFailureAccountDisabled
		result.User = user
		return result
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, identifier); err != nil {
			deps.Warn("login rate reset failed", "error", err)
		}
	}

	if deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if upgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash); err == nil && upgrade {
			if hash, err := deps.HashPassword(password); err == nil {
				if err := deps.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
					deps.Warn("password rehash failed", "user_id", user.UserID, "error", err)
				}
			}
		}
	}

	issued, err := IssueSession(ctx, user, deps.Issue)
	if err != nil {
		result.Failure = LoginFailureIssue
		result.Err = err
		result.User = user
		return result
	}

	result.User = user
	result.Session = issued
	return result
}
