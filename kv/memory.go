package kv

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process [Store] for single-node deployments and tests.
// State is lost on restart and is not shared between processes.
type Memory struct {
	c *gocache.Cache

	// mu serialises read-modify-write operations (Incr, set mutation).
	mu sync.Mutex
}

// NewMemory creates an empty store; expired entries are purged every
// cleanupInterval (a non-positive value means one minute).
func NewMemory(cleanupInterval time.Duration) *Memory {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &Memory{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	default:
		return "", ErrNotFound
	}
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.c.Set(key, value, expiration(ttl))
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, k := range keys {
		if _, ok := m.c.Get(k); ok {
			n++
		}
		m.c.Delete(k)
	}
	return n, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.c.Get(key)
	return ok, nil
}

func (m *Memory) ScanPrefix(_ context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	for k := range m.c.Items() {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.c.Add(key, int64(1), expiration(ttl)); err == nil {
		return 1, nil
	}
	n, err := m.c.IncrementInt64(key, 1)
	if err != nil {
		// Key holds a non-counter value; start a fresh window.
		m.c.Set(key, int64(1), expiration(ttl))
		return 1, nil
	}
	return n, nil
}

func (m *Memory) Decr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.c.Get(key)
	if !ok {
		return 0, nil
	}
	n, isCounter := v.(int64)
	if !isCounter || n <= 0 {
		return 0, nil
	}
	return m.c.DecrementInt64(key, 1)
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	_, exp, ok := m.c.GetWithExpiration(key)
	if !ok {
		return 0, ErrNotFound
	}
	if exp.IsZero() {
		return 0, nil
	}
	return time.Until(exp), nil
}

func (m *Memory) SetAdd(_ context.Context, key string, ttl time.Duration, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.setCopy(key, len(members))
	for _, member := range members {
		next[member] = struct{}{}
	}
	m.c.Set(key, next, expiration(ttl))
	return nil
}

func (m *Memory) SetMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.setCopy(key, 0)
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	return out, nil
}

func (m *Memory) SetRemove(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exp, ok := m.c.GetWithExpiration(key)
	if !ok {
		return nil
	}
	next := m.setCopy(key, 0)
	for _, member := range members {
		delete(next, member)
	}
	if len(next) == 0 {
		m.c.Delete(key)
		return nil
	}
	ttl := gocache.NoExpiration
	if !exp.IsZero() {
		ttl = time.Until(exp)
		if ttl <= 0 {
			m.c.Delete(key)
			return nil
		}
	}
	m.c.Set(key, next, ttl)
	return nil
}

// setCopy returns a private copy of the set stored at key; callers hold mu.
func (m *Memory) setCopy(key string, extra int) map[string]struct{} {
	v, ok := m.c.Get(key)
	if !ok {
		return make(map[string]struct{}, extra)
	}
	cur, _ := v.(map[string]struct{})
	next := make(map[string]struct{}, len(cur)+extra)
	for member := range cur {
		next[member] = struct{}{}
	}
	return next
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.c.Flush()
	return nil
}
