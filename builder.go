package sessionjwt

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rkhaya/express-session-jwt/internal"
	"github.com/rkhaya/express-session-jwt/internal/audit"
	"github.com/rkhaya/express-session-jwt/internal/flows"
	"github.com/rkhaya/express-session-jwt/internal/rate"
	"github.com/rkhaya/express-session-jwt/jwt"
	"github.com/rkhaya/express-session-jwt/kv"
	"github.com/rkhaya/express-session-jwt/password"
	"github.com/rkhaya/express-session-jwt/revocation"
	"github.com/rkhaya/express-session-jwt/session"
)

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	store  kv.Store

	userProvider UserProvider
	verifier     PasswordVerifier
	auditSink    AuditSink
	logger       *zap.Logger
	clock        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore supplies the key-value backend. Without it Build dials the
// backend named by Config.Store and the engine owns the connection.
func (b *Builder) WithStore(s kv.Store) *Builder {
	b.store = s
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithPasswordVerifier overrides the Argon2id verifier built from
// Config.Password.
func (b *Builder) WithPasswordVerifier(v PasswordVerifier) *Builder {
	b.verifier = v
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.logger = log
	return b
}

// WithClock replaces time.Now for credential timestamps. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. Missing
// signing secrets are a startup error.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("sessionjwt")

	// -------- STORE --------
	store := b.store
	ownsStore := false
	if store == nil {
		switch strings.ToLower(cfg.Store.Backend) {
		case "memory":
			store = kv.NewMemory(time.Minute)
		default:
			store = kv.DialRedis(kv.RedisOptions{
				Host:     cfg.Store.Host,
				Port:     cfg.Store.Port,
				Password: cfg.Store.Password,
				DB:       cfg.Store.DB,
				TLS:      cfg.Store.TLS,
			})
		}
		ownsStore = true
	}
	store = kv.WithTimeout(store, cfg.Store.OperationTimeout)

	// -------- CREDENTIALS --------
	codec, err := jwt.NewCodec(jwt.CodecConfig{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RenewalSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RenewalTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           b.clock,
	})
	if err != nil {
		return nil, err
	}

	strategy, err := revocation.ParseStrategy(cfg.Revocation.Strategy)
	if err != nil {
		return nil, err
	}
	markers := revocation.New(store, revocation.Options{
		Prefix:      cfg.Revocation.Prefix,
		Strategy:    strategy,
		DeleteBatch: cfg.Revocation.DeleteBatch,
	})

	// -------- PASSWORDS --------
	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	verifier := b.verifier
	if verifier == nil {
		verifier = ph
	}
	dummySeed, err := internal.NewCredentialID()
	if err != nil {
		return nil, err
	}
	dummyHash, err := ph.Hash(dummySeed.String())
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		store:     store,
		ownsStore: ownsStore,
		codec:     codec,
		markers:   markers,
		users:     b.userProvider,
		lookupTTL: userLookupTimeout(cfg.Store),
		log:       log,
		clock:     b.clock,
		metrics:   NewMetrics(cfg.Metrics),
	}

	var limiter flows.LoginLimiter
	if cfg.RateLimit.Enabled {
		engine.limiter = rate.NewLoginLimiter(store, rate.Config{
			Prefix:      cfg.RateLimit.Prefix,
			MaxAttempts: cfg.RateLimit.MaxAttempts,
			Window:      cfg.RateLimit.Window,
		})
		limiter = engine.limiter
	}

	if cfg.Session.Enabled {
		engine.sessions = session.NewStore(store, cfg.Session.Prefix, cfg.Session.TTL)
	}

	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = audit.NewZapSink(log)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	now := b.clock
	if now == nil {
		now = time.Now
	}
	engine.flowService = flows.New(flows.Deps{
		Login: flows.LoginDeps{
			Limiter:        limiter,
			FindUser:       engine.findUser,
			UserNotFound:   ErrUserNotFound,
			VerifyPassword: verifier.Verify,
			DummyHash:      dummyHash,
			Codec:          codec,
			Markers:        markers,
			Logger:         log.Named("login"),
		},
		Rotate: flows.RotateDeps{
			Codec:       codec,
			Markers:     markers,
			ExactlyOnce: cfg.Revocation.ExactlyOnceRotation,
			Logger:      log.Named("rotate"),
		},
		Logout: flows.LogoutDeps{
			Codec:   codec,
			Markers: markers,
		},
		Validate: flows.ValidateDeps{
			Codec:        codec,
			Now:          now,
			MaxClockSkew: cfg.Security.MaxClockSkew,
		},
	})

	b.built = true

	return engine, nil
}

func userLookupTimeout(c StoreConfig) time.Duration {
	switch {
	case c.UserLookupTimeout > 0:
		return c.UserLookupTimeout
	case c.OperationTimeout > 0:
		return c.OperationTimeout
	}
	return kv.DefaultOperationTimeout
}
