package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	sessionjwt "github.com/rkhaya/express-session-jwt"
	"github.com/rkhaya/express-session-jwt/internal/logger"
)

// Settings is everything a process needs: the engine configuration plus the
// HTTP, logging and user directory settings around it.
type Settings struct {
	Engine sessionjwt.Config

	HTTPAddr   string
	TrustProxy bool
	Log        logger.Config

	// UserSeedPath is a YAML user list for the in-memory directory.
	UserSeedPath string
	// DatabaseURL selects the PostgreSQL user directory when set.
	DatabaseURL string
}

// Options locates the optional sources.
type Options struct {
	// Path is a YAML file; empty skips it.
	Path string
	// EnvFile is loaded with godotenv when it exists. Variables already set
	// in the environment win.
	EnvFile string
}

// file mirrors the YAML layout. Zero values leave defaults untouched.
type file struct {
	Production bool `yaml:"production"`

	Server struct {
		Addr       string `yaml:"addr"`
		TrustProxy bool   `yaml:"trust_proxy"`
	} `yaml:"server"`

	Log struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	JWT struct {
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
		Issuer     string        `yaml:"issuer"`
		Audience   string        `yaml:"audience"`
		Leeway     time.Duration `yaml:"leeway"`
	} `yaml:"jwt"`

	Store struct {
		Backend          string        `yaml:"backend"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		DB               int           `yaml:"db"`
		TLS              bool          `yaml:"tls"`
		OperationTimeout time.Duration `yaml:"operation_timeout"`
		UserLookup       time.Duration `yaml:"user_lookup_timeout"`
	} `yaml:"store"`

	Revocation struct {
		Prefix      string `yaml:"prefix"`
		Strategy    string `yaml:"strategy"`
		ExactlyOnce bool   `yaml:"exactly_once"`
	} `yaml:"revocation"`

	RateLimit struct {
		Disabled    bool          `yaml:"disabled"`
		MaxAttempts int           `yaml:"max_attempts"`
		Window      time.Duration `yaml:"window"`
	} `yaml:"rate_limit"`

	Session struct {
		Enabled  bool          `yaml:"enabled"`
		TTL      time.Duration `yaml:"ttl"`
		Secure   bool          `yaml:"secure"`
		SameSite string        `yaml:"same_site"`
	} `yaml:"session"`

	Audit struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"audit"`

	Metrics struct {
		Enabled    bool `yaml:"enabled"`
		Histograms bool `yaml:"histograms"`
	} `yaml:"metrics"`

	Users struct {
		Seed string `yaml:"seed"`
	} `yaml:"users"`
}

// env is read with envconfig. Empty values leave earlier layers untouched.
type env struct {
	AccessSecret  string `envconfig:"JWT_ACCESS_SECRET"`
	RefreshSecret string `envconfig:"JWT_REFRESH_SECRET"`

	RedisHost     string `envconfig:"REDIS_HOST"`
	RedisPort     int    `envconfig:"REDIS_PORT"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisTLS      *bool  `envconfig:"REDIS_TLS"`

	SessionSecret string `envconfig:"SESSION_SECRET"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	HTTPAddr      string `envconfig:"HTTP_ADDR"`
	AppEnv        string `envconfig:"APP_ENV"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
}

// Load resolves defaults, then the YAML file, then the .env file and the
// process environment, and validates the engine configuration.
func Load(opts Options) (*Settings, error) {
	s := &Settings{
		Engine:   sessionjwt.DefaultConfig(),
		HTTPAddr: ":8080",
		Log:      logger.Config{Env: "dev", Level: "info", Service: "sessionjwt"},
	}

	if opts.Path != "" {
		raw, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var f file
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", opts.Path, err)
		}
		if err := applyFile(s, &f); err != nil {
			return nil, err
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	var e env
	if err := envconfig.Process("", &e); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	applyEnv(s, &e)

	if err := s.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return s, nil
}

func applyFile(s *Settings, f *file) error {
	c := &s.Engine

	c.Security.ProductionMode = f.Production
	if f.Production {
		s.Log.Env = "prod"
	}
	setString(&s.HTTPAddr, f.Server.Addr)
	s.TrustProxy = f.Server.TrustProxy
	setString(&s.Log.Env, f.Log.Env)
	setString(&s.Log.Level, f.Log.Level)

	setDuration(&c.JWT.AccessTTL, f.JWT.AccessTTL)
	setDuration(&c.JWT.RefreshTTL, f.JWT.RefreshTTL)
	setDuration(&c.JWT.Leeway, f.JWT.Leeway)
	setString(&c.JWT.Issuer, f.JWT.Issuer)
	setString(&c.JWT.Audience, f.JWT.Audience)

	setString(&c.Store.Backend, f.Store.Backend)
	setString(&c.Store.Host, f.Store.Host)
	setInt(&c.Store.Port, f.Store.Port)
	setInt(&c.Store.DB, f.Store.DB)
	c.Store.TLS = c.Store.TLS || f.Store.TLS
	setDuration(&c.Store.OperationTimeout, f.Store.OperationTimeout)
	setDuration(&c.Store.UserLookupTimeout, f.Store.UserLookup)

	setString(&c.Revocation.Prefix, f.Revocation.Prefix)
	setString(&c.Revocation.Strategy, f.Revocation.Strategy)
	c.Revocation.ExactlyOnceRotation = f.Revocation.ExactlyOnce

	c.RateLimit.Enabled = !f.RateLimit.Disabled
	setInt(&c.RateLimit.MaxAttempts, f.RateLimit.MaxAttempts)
	setDuration(&c.RateLimit.Window, f.RateLimit.Window)

	c.Session.Enabled = f.Session.Enabled
	setDuration(&c.Session.TTL, f.Session.TTL)
	c.Session.Secure = f.Session.Secure
	if f.Session.SameSite != "" {
		mode, err := parseSameSite(f.Session.SameSite)
		if err != nil {
			return err
		}
		c.Session.SameSite = mode
	}

	c.Audit.Enabled = f.Audit.Enabled
	c.Metrics.Enabled = f.Metrics.Enabled
	c.Metrics.EnableLatencyHistograms = f.Metrics.Histograms
	setString(&s.UserSeedPath, f.Users.Seed)
	return nil
}

func applyEnv(s *Settings, e *env) {
	c := &s.Engine

	if e.AccessSecret != "" {
		c.JWT.AccessSecret = []byte(e.AccessSecret)
	}
	if e.RefreshSecret != "" {
		c.JWT.RefreshSecret = []byte(e.RefreshSecret)
	}
	setString(&c.Store.Host, e.RedisHost)
	setInt(&c.Store.Port, e.RedisPort)
	setString(&c.Store.Password, e.RedisPassword)
	if e.RedisTLS != nil {
		c.Store.TLS = *e.RedisTLS
	}
	if e.SessionSecret != "" {
		c.Session.Secret = []byte(e.SessionSecret)
	}

	setString(&s.DatabaseURL, e.DatabaseURL)
	setString(&s.HTTPAddr, e.HTTPAddr)
	setString(&s.Log.Env, e.AppEnv)
	setString(&s.Log.Level, e.LogLevel)
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("config: unknown session same_site %q", v)
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
