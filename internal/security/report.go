package security

import "time"

// PasswordReport echoes the Argon2id parameters.
type PasswordReport struct {
	Memory      uint32 `yaml:"memory_kib"`
	Time        uint32 `yaml:"time"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
}

// Report summarises the effective security posture of a built engine.
type Report struct {
	ProductionMode      bool           `yaml:"production_mode"`
	SigningAlgorithm    string         `yaml:"signing_algorithm"`
	DistinctSecrets     bool           `yaml:"distinct_secrets"`
	AccessTTL           time.Duration  `yaml:"access_ttl"`
	RefreshTTL          time.Duration  `yaml:"refresh_ttl"`
	Leeway              time.Duration  `yaml:"leeway"`
	Argon2              PasswordReport `yaml:"argon2"`
	StoreBackend        string         `yaml:"store_backend"`
	StoreTLS            bool           `yaml:"store_tls"`
	OperationTimeout    time.Duration  `yaml:"operation_timeout"`
	RevocationStrategy  string         `yaml:"revocation_strategy"`
	ExactlyOnceRotation bool           `yaml:"exactly_once_rotation"`
	RateLimitingActive  bool           `yaml:"rate_limiting_active"`
	MaxLoginAttempts    int            `yaml:"max_login_attempts,omitempty"`
	LoginWindow         time.Duration  `yaml:"login_window,omitempty"`
	SessionsActive      bool           `yaml:"sessions_active"`
	SessionCookieSecure bool           `yaml:"session_cookie_secure"`
	AuditEnabled        bool           `yaml:"audit_enabled"`
	Warnings            []string       `yaml:"warnings,omitempty"`
}

type ReportInput struct {
	ProductionMode      bool
	SigningAlgorithm    string
	DistinctSecrets     bool
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	Leeway              time.Duration
	Password            PasswordReport
	StoreBackend        string
	StoreTLS            bool
	OperationTimeout    time.Duration
	RevocationStrategy  string
	ExactlyOnceRotation bool
	RateLimitEnabled    bool
	MaxLoginAttempts    int
	LoginWindow         time.Duration
	SessionsEnabled     bool
	SessionCookieSecure bool
	AuditEnabled        bool
}

// Weakest Argon2id memory cost reported without a warning, in KiB.
const minRecommendedMemory = 19 * 1024

func BuildReport(input ReportInput) Report {
	rateLimiting := input.RateLimitEnabled &&
		input.MaxLoginAttempts > 0 &&
		input.LoginWindow > 0

	r := Report{
		ProductionMode:      input.ProductionMode,
		SigningAlgorithm:    input.SigningAlgorithm,
		DistinctSecrets:     input.DistinctSecrets,
		AccessTTL:           input.AccessTTL,
		RefreshTTL:          input.RefreshTTL,
		Leeway:              input.Leeway,
		Argon2:              input.Password,
		StoreBackend:        input.StoreBackend,
		StoreTLS:            input.StoreTLS,
		OperationTimeout:    input.OperationTimeout,
		RevocationStrategy:  input.RevocationStrategy,
		ExactlyOnceRotation: input.ExactlyOnceRotation,
		RateLimitingActive:  rateLimiting,
		SessionsActive:      input.SessionsEnabled,
		SessionCookieSecure: input.SessionsEnabled && input.SessionCookieSecure,
		AuditEnabled:        input.AuditEnabled,
	}
	if rateLimiting {
		r.MaxLoginAttempts = input.MaxLoginAttempts
		r.LoginWindow = input.LoginWindow
	}

	if !input.DistinctSecrets {
		r.Warnings = append(r.Warnings, "access and renewal credentials share a signing secret")
	}
	if !rateLimiting {
		r.Warnings = append(r.Warnings, "failed-login limiting is disabled")
	}
	if input.Password.Memory < minRecommendedMemory {
		r.Warnings = append(r.Warnings, "argon2id memory cost is below 19 MiB")
	}
	if input.ProductionMode {
		if input.StoreBackend == "redis" && !input.StoreTLS {
			r.Warnings = append(r.Warnings, "redis connection is not using TLS")
		}
		if !input.AuditEnabled {
			r.Warnings = append(r.Warnings, "audit events are disabled")
		}
	}
	return r
}
