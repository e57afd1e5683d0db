package kv

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key does not exist or has expired.
	ErrNotFound = errors.New("kv: key not found")
	// ErrUnavailable wraps every backend fault, including call timeouts.
	ErrUnavailable = errors.New("kv: store unavailable")
)

// Store is the minimal key-value contract consumed by the token lifecycle core.
//
// Implementations must be safe for concurrent use. Deleting absent keys is not an
// error. Incr implements fixed-window counting: the ttl is applied only when the
// counter has none, so a window starts with its first hit. Decr undoes one Incr
// without touching the TTL; it never creates a key or goes below zero.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	SetAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	SetRemove(ctx context.Context, key string, members ...string) error

	Ping(ctx context.Context) error
	Close() error
}

var globReplacer = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// escapeGlob makes a literal prefix safe for a Redis MATCH pattern.
func escapeGlob(prefix string) string {
	return globReplacer.Replace(prefix)
}
