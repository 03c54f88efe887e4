package session

// Status values stored with a session.
const (
	StatusActive   uint8 = 0
	StatusDisabled uint8 = 1
)

// Session is one refresh session. RefreshHash is the SHA-256 of the current
// refresh secret; the secret itself is never stored.
type Session struct {
	SessionID   string
	UserID      string
	Status      uint8
	RefreshHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
