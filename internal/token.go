package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

// A refresh token is base64url(version || session UUID || secret). Redis
// only ever stores the SHA-256 of the secret.
const (
	refreshTokenVersion byte = 1
	refreshSecretSize        = 32
	refreshTokenSize         = 1 + 16 + refreshSecretSize
)

var ErrMalformedRefreshToken = errors.New("malformed refresh token")

// NewSessionID returns a random (version 4) UUID.
func NewSessionID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, err
	}
	return secret, nil
}

func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken packs a session ID produced by NewSessionID with secret.
func EncodeRefreshToken(sessionID string, secret [refreshSecretSize]byte) (string, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return "", err
	}

	raw := make([]byte, 0, refreshTokenSize)
	raw = append(raw, refreshTokenVersion)
	raw = append(raw, id[:]...)
	raw = append(raw, secret[:]...)
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeRefreshToken splits token into its session ID and secret.
func DecodeRefreshToken(token string) (string, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != refreshTokenSize || raw[0] != refreshTokenVersion {
		return "", secret, ErrMalformedRefreshToken
	}

	id, err := uuid.FromBytes(raw[1:17])
	if err != nil {
		return "", secret, ErrMalformedRefreshToken
	}
	copy(secret[:], raw[17:])
	return id.String(), secret, nil
}
