package security

import (
	"fmt"
	"time"
)

// Minimum argon2id memory recommended for interactive logins, in KiB.
const minArgon2Memory = 19 * 1024

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report summarizes the security posture of an auth configuration.
type Report struct {
	SigningAlgorithm      string
	StrictMode            bool
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Argon2                PasswordReport
	RefreshRotation       bool
	RefreshReuseDetection bool
	LoginRateLimiting     bool
	RefreshRateLimiting   bool
	IPThrottle            bool
	AuditEnabled          bool
	// Findings lists settings that weaken the posture. Empty is good.
	Findings              []string
}

type ReportInput struct {
	SigningAlgorithm      string
	StrictMode            bool
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	Password              PasswordReport
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableRefreshThrottle bool
	EnableIPThrottle      bool
	AuditEnabled          bool
}

// BuildReport evaluates input. Refresh rotation and reuse detection are
// always on: every refresh rotates the secret and a stale secret ends the
// session.
func BuildReport(input ReportInput) Report {
	r := Report{
		SigningAlgorithm:      input.SigningAlgorithm,
		StrictMode:            input.StrictMode,
		AccessTTL:             input.AccessTTL,
		RefreshTTL:            input.RefreshTTL,
		Argon2:                input.Password,
		RefreshRotation:       true,
		RefreshReuseDetection: true,
		LoginRateLimiting:     input.MaxLoginAttempts > 0 && input.LoginCooldownDuration > 0,
		RefreshRateLimiting:   input.EnableRefreshThrottle,
		IPThrottle:            input.EnableIPThrottle,
		AuditEnabled:          input.AuditEnabled,
	}

	if !input.StrictMode {
		r.Findings = append(r.Findings, fmt.Sprintf("jwt_only validation: logout takes up to %s to reach access tokens", input.AccessTTL))
	}
	if input.AccessTTL > time.Hour {
		r.Findings = append(r.Findings, fmt.Sprintf("access tokens live %s; keep them under 1h", input.AccessTTL))
	}
	if input.Password.Memory < minArgon2Memory {
		r.Findings = append(r.Findings, fmt.Sprintf("argon2 memory %d KiB is below %d KiB", input.Password.Memory, minArgon2Memory))
	}
	if !r.LoginRateLimiting {
		r.Findings = append(r.Findings, "login rate limiting is off")
	}
	if !r.RefreshRateLimiting {
		r.Findings = append(r.Findings, "refresh rate limiting is off")
	}
	return r
}
