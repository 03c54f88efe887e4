package socialn

import "github.com/socialn/socialn/internal/security"

type SecurityReport = security.Report

// SecurityReport describes the posture of c without connecting anywhere.
func (c Config) SecurityReport() SecurityReport {
	return security.BuildReport(security.ReportInput{
		SigningAlgorithm: c.JWT.SigningMethod,
		StrictMode:       c.ValidationMode == ModeStrict,
		AccessTTL:        c.JWT.AccessTTL,
		RefreshTTL:       c.JWT.RefreshTTL,
		Password: security.PasswordReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		MaxLoginAttempts:      c.Security.MaxLoginAttempts,
		LoginCooldownDuration: c.Security.LoginCooldownDuration,
		EnableRefreshThrottle: c.Security.EnableRefreshThrottle,
		EnableIPThrottle:      c.Security.EnableIPThrottle,
		AuditEnabled:          c.Audit.Enabled,
	})
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return e.config.SecurityReport()
}
