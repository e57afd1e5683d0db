package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rkhaya/express-session-jwt/kv"
)

const (
	// DefaultPrefix namespaces failed-login counters.
	DefaultPrefix = "rl_login_"
	// DefaultMaxAttempts is the number of failures allowed per window.
	DefaultMaxAttempts = 5
	// DefaultWindow is the counting window.
	DefaultWindow = 5 * time.Minute
)

// Config holds limiter tuning parameters.
type Config struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

// Decision describes the limiter state for one key.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Window     time.Duration
}

// LoginLimiter counts failed login attempts per (origin, identity).
type LoginLimiter struct {
	store  kv.Store
	config Config
}

// NewLoginLimiter creates a limiter on store. Zero fields in cfg take defaults.
func NewLoginLimiter(store kv.Store, cfg Config) *LoginLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &LoginLimiter{store: store, config: cfg}
}

// Key builds the counter key for a client address and claimed identity.
func (l *LoginLimiter) Key(ip, identity string) string {
	return l.config.Prefix + NormalizeIP(ip) + ":" + NormalizeIdentity(identity)
}

// Reserve counts the attempt before any credential is checked and reports
// whether it may proceed. Concurrent callers for one key each get a distinct
// count, so at most MaxAttempts of them are admitted per window. A rejected
// reservation is handed back so the counter keeps counting only admitted
// attempts.
func (l *LoginLimiter) Reserve(ctx context.Context, ip, identity string) (Decision, error) {
	key := l.Key(ip, identity)

	count, err := l.store.Incr(ctx, key, l.config.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("reserve login attempt: %w", err)
	}
	if int(count) > l.config.MaxAttempts {
		_, _ = l.store.Decr(ctx, key)
		d := l.decide(l.config.MaxAttempts)
		d.RetryAfter = l.retryAfter(ctx, key)
		return d, nil
	}

	d := l.decide(int(count))
	// The attempt in flight is admitted even when it takes the last slot.
	d.Allowed = true
	return d, nil
}

// Release returns a reserved slot for an attempt that did not fail
// authentication. Failures counted earlier in the window are kept.
func (l *LoginLimiter) Release(ctx context.Context, ip, identity string) error {
	if _, err := l.store.Decr(ctx, l.Key(ip, identity)); err != nil {
		return fmt.Errorf("release login attempt: %w", err)
	}
	return nil
}

// Attempts returns the failures counted in the current window.
func (l *LoginLimiter) Attempts(ctx context.Context, ip, identity string) (int, error) {
	return l.count(ctx, l.Key(ip, identity))
}

func (l *LoginLimiter) count(ctx context.Context, key string) (int, error) {
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read login failures: %w", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func (l *LoginLimiter) decide(count int) Decision {
	remaining := l.config.MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count < l.config.MaxAttempts,
		Limit:     l.config.MaxAttempts,
		Remaining: remaining,
		Window:    l.config.Window,
	}
}

// retryAfter is best effort: the decision is already made, so a TTL read
// failure falls back to a full window.
func (l *LoginLimiter) retryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := l.store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return l.config.Window
	}
	return ttl
}
