package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/socialn/socialn"
)

type authProvider struct {
	users Users
}

// AuthProvider adapts Users to the auth engine's account backend.
func AuthProvider(users Users) socialn.UserProvider {
	return authProvider{users: users}
}

func (a authProvider) GetUserByIdentifier(ctx context.Context, identifier string) (socialn.UserRecord, error) {
	u, err := a.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return socialn.UserRecord{}, authError(err)
	}
	return userRecord(u), nil
}

func (a authProvider) GetUserByID(ctx context.Context, userID string) (socialn.UserRecord, error) {
	u, err := a.users.GetUser(ctx, userID)
	if err != nil {
		return socialn.UserRecord{}, authError(err)
	}
	return userRecord(u), nil
}

func (a authProvider) CreateUser(ctx context.Context, in socialn.CreateUserInput) (socialn.UserRecord, error) {
	u, err := a.users.CreateUser(ctx, User{
		UserName:     in.UserName,
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Status:       UserActive,
	})
	if err != nil {
		return socialn.UserRecord{}, authError(err)
	}
	return userRecord(u), nil
}

func (a authProvider) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	return authError(a.users.UpdatePasswordHash(ctx, userID, passwordHash))
}

func userRecord(u User) socialn.UserRecord {
	return socialn.UserRecord{
		UserID:       u.ID,
		UserName:     u.UserName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Status:       socialn.AccountStatus(u.Status),
	}
}

func authError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %w", socialn.ErrUserNotFound, err)
	case errors.Is(err, ErrDuplicateEmail):
		return fmt.Errorf("%w: %w", socialn.ErrEmailTaken, err)
	case errors.Is(err, ErrDuplicateUserName):
		return fmt.Errorf("%w: %w", socialn.ErrUserNameTaken, err)
	default:
		return err
	}
}
