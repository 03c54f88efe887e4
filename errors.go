package socialn

import "errors"

var (
	ErrEngineNotReady     = errors.New("engine not initialized")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNameTaken      = errors.New("user name already registered")
	ErrAccountDisabled    = errors.New("account disabled")
	// ErrAccountCreationUnavailable wraps backend failures while creating a user.
	ErrAccountCreationUnavailable = errors.New("account creation backend unavailable")
	ErrPasswordPolicy             = errors.New("password policy violation")
	ErrLoginRateLimited           = errors.New("login rate limited")
	ErrRefreshRateLimited         = errors.New("refresh rate limited")
	ErrSessionCreationFailed      = errors.New("session creation failed")
	ErrSessionNotFound            = errors.New("session not found")
	ErrTokenInvalid               = errors.New("invalid token")
	ErrRefreshInvalid             = errors.New("invalid refresh token")
	// ErrRefreshReuse means a rotated-out refresh token was presented. The
	// session it belonged to has been destroyed.
	ErrRefreshReuse      = errors.New("refresh token reuse detected")
	ErrStrictBackendDown = errors.New("strict validation backend unavailable")
	ErrRedisUnavailable  = errors.New("redis unavailable")
)
