package flows

import (
	"context"
	"strings"
)

// RegisterFailureKind classifies registration failures.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureInvalid
	RegisterFailurePasswordPolicy
	RegisterFailureCreate
	RegisterFailureIssue
)

// RegisterInput is the flow-local registration request.
type RegisterInput struct {
	UserName string
	FullName string
	Email    string
	Password string
}

// RegisterResult carries either the new user and session or failure metadata.
type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	User    UserRecord
	Session IssuedSession
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	HashPassword func(password string) (string, error)
	CreateUser   func(ctx context.Context, in RegisterInput, passwordHash string) (UserRecord, error)
	Issue        IssueDeps
}

// NormalizeRegisterInput trims every field and lowercases email and user name.
func NormalizeRegisterInput(in RegisterInput) RegisterInput {
	return RegisterInput{
		UserName: NormalizeIdentifier(in.UserName),
		FullName: strings.TrimSpace(in.FullName),
		Email:    NormalizeIdentifier(in.Email),
		Password: in.Password,
	}
}

// MissingRegisterFields lists the JSON names of empty required fields.
func MissingRegisterFields(in RegisterInput) []string {
	var missing []string
	if in.UserName == "" {
		missing = append(missing, "userName")
	}
	if in.FullName == "" {
		missing = append(missing, "fullName")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	return missing
}

// RunRegister creates the account and logs it in.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) RegisterResult {
	in = NormalizeRegisterInput(in)
	if len(MissingRegisterFields(in)) > 0 || !strings.Contains(in.Email, "@") || strings.ContainsAny(in.UserName, " @") {
		return RegisterResult{Failure: RegisterFailureInvalid}
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return RegisterResult{Failure: RegisterFailurePasswordPolicy, Err: err}
	}

	user, err := deps.CreateUser(ctx, in, hash)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureCreate, Err: err}
	}

	issued, err := IssueSession(ctx, user, deps.Issue)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureIssue, Err: err, User: user}
	}
	return RegisterResult{User: user, Session: issued}
}
