package socialn

import (
	"errors"
	"fmt"
	"time"

	"github.com/socialn/socialn/password"
)

// Config is the Engine configuration. Start from DefaultConfig and override.
type Config struct {
	JWT            JWTConfig
	Session        SessionConfig
	Password       PasswordConfig
	Security       SecurityConfig
	Audit          AuditConfig
	ValidationMode ValidationMode
}

// JWTConfig controls access and refresh token lifetimes and signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

type SessionConfig struct {
	RedisPrefix string
}

// PasswordConfig holds argon2id parameters.
type PasswordConfig struct {
	Memory         uint32 // KiB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// SecurityConfig tunes login and refresh throttling.
type SecurityConfig struct {
	EnableIPThrottle        bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	EnableRefreshThrottle   bool
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// DefaultConfig returns production defaults. JWT.PrivateKey must still be set.
func DefaultConfig() Config {
	p := password.DefaultParams()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "socialn",
		},
		Session: SessionConfig{
			RedisPrefix: "sn",
		},
		Password: PasswordConfig{
			Memory:         p.Memory,
			Time:           p.Time,
			Parallelism:    p.Parallelism,
			SaltLength:     p.SaltLength,
			KeyLength:      p.KeyLength,
			UpgradeOnLogin: true,
		},
		Security: SecurityConfig{
			EnableIPThrottle:        true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			EnableRefreshThrottle:   true,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		ValidationMode: ModeStrict,
	}
}

func (c PasswordConfig) params() password.Params {
	return password.Params{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
	default:
		return fmt.Errorf("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	if err := c.Password.params().Validate(); err != nil {
		return fmt.Errorf("Password: %w", err)
	}

	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0 when refresh throttle is enabled")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return errors.New("Security RefreshCooldownDuration must be > 0 when refresh throttle is enabled")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	switch c.ValidationMode {
	case ModeStrict, ModeJWTOnly:
	default:
		return errors.New("invalid ValidationMode")
	}

	return nil
}
