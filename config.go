package sessionjwt

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rkhaya/express-session-jwt/internal/rate"
	"github.com/rkhaya/express-session-jwt/jwt"
	"github.com/rkhaya/express-session-jwt/kv"
	"github.com/rkhaya/express-session-jwt/revocation"
	"github.com/rkhaya/express-session-jwt/session"
)

// Config is the complete engine configuration. Build copies it; later
// mutation of the caller's value has no effect.
type Config struct {
	JWT        JWTConfig
	Store      StoreConfig
	Revocation RevocationConfig
	RateLimit  RateLimitConfig
	Session    SessionConfig
	Password   PasswordConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Security   SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the two signing secrets and credential lifetimes.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig describes the key-value backend.
type StoreConfig struct {
	Backend          string // "redis" (default) or "memory"
	Host             string
	Port             int
	Password         string
	DB               int
	TLS              bool
	OperationTimeout time.Duration
	// UserLookupTimeout bounds each UserProvider call. Zero uses
	// OperationTimeout.
	UserLookupTimeout time.Duration
}

// RevocationConfig controls renewal marker bookkeeping.
type RevocationConfig struct {
	Prefix      string
	Strategy    string // "scan" (default) or "indexed"
	DeleteBatch int

	// ExactlyOnceRotation makes concurrent rotations of one renewal credential
	// produce exactly one successor.
	ExactlyOnceRotation bool
}

// RateLimitConfig controls the failed-login limiter.
type RateLimitConfig struct {
	Enabled     bool
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

// SessionConfig controls cookie-backed sessions.
type SessionConfig struct {
	Enabled    bool
	Prefix     string
	CookieName string
	TTL        time.Duration
	Secret     []byte
	Secure     bool
	SameSite   http.SameSite
}

// PasswordConfig holds Argon2id parameters for the default verifier.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// SecurityConfig holds cross-cutting checks.
type SecurityConfig struct {
	ProductionMode bool
	MaxClockSkew   time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Secrets are left empty and
// must be supplied before Build.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  jwt.DefaultAccessTTL,
			RefreshTTL: jwt.DefaultRenewalTTL,
		},
		Store: StoreConfig{
			Backend:          "redis",
			Host:             "localhost",
			Port:             6379,
			OperationTimeout: kv.DefaultOperationTimeout,
		},
		Revocation: RevocationConfig{
			Prefix:   revocation.DefaultPrefix,
			Strategy: revocation.ScanPrefix.String(),
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Prefix:      rate.DefaultPrefix,
			MaxAttempts: rate.DefaultMaxAttempts,
			Window:      rate.DefaultWindow,
		},
		Session: SessionConfig{
			Enabled:    false,
			Prefix:     session.DefaultPrefix,
			CookieName: session.DefaultCookieName,
			TTL:        session.DefaultTTL,
			SameSite:   http.SameSiteLaxMode,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			MaxClockSkew: 30 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	out.Session.Secret = cloneBytes(cfg.Session.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error. A missing signing secret is
// always fatal.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) == 0 {
		return errors.New("JWT AccessSecret is required (JWT_ACCESS_SECRET)")
	}
	if len(c.JWT.RefreshSecret) == 0 {
		return errors.New("JWT RefreshSecret is required (JWT_REFRESH_SECRET)")
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}

	// Store
	switch strings.ToLower(c.Store.Backend) {
	case "", "redis", "memory":
	default:
		return errors.New("Store Backend must be 'redis' or 'memory'")
	}
	if c.Store.Port < 0 || c.Store.Port > 65535 {
		return errors.New("Store Port is out of range")
	}
	if c.Store.OperationTimeout < 0 {
		return errors.New("Store OperationTimeout must be >= 0")
	}
	if c.Store.UserLookupTimeout < 0 {
		return errors.New("Store UserLookupTimeout must be >= 0")
	}
	if c.Security.ProductionMode && strings.EqualFold(c.Store.Backend, "memory") {
		return errors.New("memory store is not allowed in ProductionMode")
	}

	// Revocation
	if strings.Contains(c.Revocation.Prefix, ":") {
		return errors.New("Revocation Prefix must not contain ':'")
	}
	if _, err := revocation.ParseStrategy(c.Revocation.Strategy); err != nil {
		return err
	}
	if c.Revocation.DeleteBatch < 0 {
		return errors.New("Revocation DeleteBatch must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit MaxAttempts must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	// Session
	if c.Session.Enabled {
		if len(c.Session.Secret) == 0 {
			return errors.New("Session Secret is required when sessions are enabled (SESSION_SECRET)")
		}
		if c.Session.TTL <= 0 {
			return errors.New("Session TTL must be > 0")
		}
		if strings.TrimSpace(c.Session.CookieName) == "" {
			return errors.New("Session CookieName is required")
		}
		if c.Security.ProductionMode && !c.Session.Secure {
			return errors.New("Session Secure cookies are required in ProductionMode")
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	// Security
	if c.Security.MaxClockSkew < 0 {
		return errors.New("Security MaxClockSkew must be >= 0")
	}

	return nil
}
