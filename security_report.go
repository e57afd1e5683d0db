package sessionjwt

import (
	"bytes"
	"strings"

	"github.com/rkhaya/express-session-jwt/internal/security"
)

// SecurityReport is the effective posture of a built engine.
type SecurityReport = security.Report

// SecurityReport summarises the running configuration without exposing
// secrets.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config

	backend := strings.ToLower(c.Store.Backend)
	if backend == "" {
		backend = "redis"
	}
	strategy := c.Revocation.Strategy
	if strategy == "" {
		strategy = "scan"
	}

	return security.BuildReport(security.ReportInput{
		ProductionMode:   c.Security.ProductionMode,
		SigningAlgorithm: "HS256",
		DistinctSecrets:  !bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret),
		AccessTTL:        c.JWT.AccessTTL,
		RefreshTTL:       c.JWT.RefreshTTL,
		Leeway:           c.JWT.Leeway,
		Password: security.PasswordReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		StoreBackend:        backend,
		StoreTLS:            c.Store.TLS,
		OperationTimeout:    c.Store.OperationTimeout,
		RevocationStrategy:  strategy,
		ExactlyOnceRotation: c.Revocation.ExactlyOnceRotation,
		RateLimitEnabled:    c.RateLimit.Enabled,
		MaxLoginAttempts:    c.RateLimit.MaxAttempts,
		LoginWindow:         c.RateLimit.Window,
		SessionsEnabled:     c.Session.Enabled,
		SessionCookieSecure: c.Session.Secure,
		AuditEnabled:        c.Audit.Enabled,
	})
}
