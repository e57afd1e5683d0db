package kv

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultOperationTimeout bounds a single store round trip when no explicit
// timeout is configured.
const DefaultOperationTimeout = 2 * time.Second

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout decorates s so every call runs under its own deadline. A deadline
// hit is reported as [ErrUnavailable], never as a missing key.
func WithTimeout(s Store, timeout time.Duration) Store {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	if ts, ok := s.(*timeoutStore); ok {
		return &timeoutStore{next: ts.next, timeout: timeout}
	}
	return &timeoutStore{next: s, timeout: timeout}
}

func (t *timeoutStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, t.timeout)
}

func classify(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (t *timeoutStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	v, err := t.next.Get(ctx, key)
	return v, classify(err)
}

func (t *timeoutStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	return classify(t.next.Set(ctx, key, value, ttl))
}

func (t *timeoutStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	n, err := t.next.Delete(ctx, keys...)
	return n, classify(err)
}

func (t *timeoutStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	ok, err := t.next.Exists(ctx, key)
	return ok, classify(err)
}

func (t *timeoutStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	keys, err := t.next.ScanPrefix(ctx, prefix)
	return keys, classify(err)
}

func (t *timeoutStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	n, err := t.next.Incr(ctx, key, ttl)
	return n, classify(err)
}

func (t *timeoutStore) Decr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	n, err := t.next.Decr(ctx, key)
	return n, classify(err)
}

func (t *timeoutStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	d, err := t.next.TTL(ctx, key)
	return d, classify(err)
}

func (t *timeoutStore) SetAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	return classify(t.next.SetAdd(ctx, key, ttl, members...))
}

func (t *timeoutStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	members, err := t.next.SetMembers(ctx, key)
	return members, classify(err)
}

func (t *timeoutStore) SetRemove(ctx context.Context, key string, members ...string) error {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	return classify(t.next.SetRemove(ctx, key, members...))
}

func (t *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := t.bounded(ctx)
	defer cancel()
	return classify(t.next.Ping(ctx))
}

func (t *timeoutStore) Close() error {
	return t.next.Close()
}
