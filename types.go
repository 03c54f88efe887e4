package socialn

import "context"

// AccountStatus is the lifecycle state of a user account.
type AccountStatus uint8

const (
	AccountActive AccountStatus = iota
	AccountDisabled
)

// UserRecord is the credential view of a user account.
type UserRecord struct {
	UserID       string
	UserName     string
	Email        string
	PasswordHash string
	Status       AccountStatus
}

// CreateUserInput is passed to [UserProvider.CreateUser]. Email and
// UserName are already normalized; PasswordHash is an argon2id PHC string.
type CreateUserInput struct {
	UserName     string
	FullName     string
	Email        string
	PasswordHash string
}

// UserProvider is the account backend used by the Engine.
//
// GetUserByIdentifier resolves an email or user name (lowercased). Lookups
// return an error matching ErrUserNotFound when nothing matches. CreateUser
// returns errors matching ErrEmailTaken or ErrUserNameTaken on conflicts.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, in CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// RegisterInput is a self-service signup request.
type RegisterInput struct {
	UserName string
	FullName string
	Email    string
	Password string
}

// LoginResult is returned by Login and Register.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	User         UserRecord
}

// AuthResult identifies the caller of a validated access token.
type AuthResult struct {
	UserID    string
	SessionID string
}

// ValidationMode selects how much work Validate does per request.
type ValidationMode int

const (
	// ModeStrict checks that the session still exists in Redis, so logout
	// takes effect before the access token expires.
	ModeStrict ValidationMode = iota
	// ModeJWTOnly trusts the signature and expiry alone.
	ModeJWTOnly
)
