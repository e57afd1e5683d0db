package revocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rkhaya/express-session-jwt/kv"
)

// DefaultPrefix is the key namespace for renewal credential markers.
const DefaultPrefix = "refreshToken"

const (
	separator          = ":"
	markerValue        = "1"
	defaultDeleteBatch = 500
)

// ErrInvalidKey is returned when a principal or credential id is empty or
// contains the key separator.
var ErrInvalidKey = errors.New("revocation: invalid key component")

// Strategy selects how RevokeAll finds a principal's markers.
type Strategy int

const (
	// ScanPrefix walks the keyspace by prefix.
	ScanPrefix Strategy = iota
	// IndexedSet keeps a per-principal set of credential ids.
	IndexedSet
)

func (s Strategy) String() string {
	switch s {
	case IndexedSet:
		return "indexed"
	default:
		return "scan"
	}
}

// ParseStrategy maps "scan" and "indexed" to a Strategy.
func ParseStrategy(v string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "scan":
		return ScanPrefix, nil
	case "indexed":
		return IndexedSet, nil
	default:
		return ScanPrefix, fmt.Errorf("unknown revoke-all strategy %q", v)
	}
}

// Options configures a Store.
type Options struct {
	Prefix      string
	Strategy    Strategy
	DeleteBatch int
}

// Store maps (principal, credential id) pairs to markers in a kv.Store.
type Store struct {
	kv          kv.Store
	prefix      string
	strategy    Strategy
	deleteBatch int
}

// New builds a Store on top of s.
func New(s kv.Store, opts Options) *Store {
	prefix := strings.TrimSuffix(opts.Prefix, separator)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	batch := opts.DeleteBatch
	if batch <= 0 {
		batch = defaultDeleteBatch
	}
	return &Store{kv: s, prefix: prefix, strategy: opts.Strategy, deleteBatch: batch}
}

// Strategy reports the configured revoke-all strategy.
func (s *Store) Strategy() Strategy {
	return s.strategy
}

func validComponent(v string) bool {
	return v != "" && !strings.Contains(v, separator)
}

func (s *Store) principalPrefix(principal string) string {
	return s.prefix + separator + principal + separator
}

func (s *Store) key(principal, jti string) (string, error) {
	if !validComponent(principal) || !validComponent(jti) {
		return "", ErrInvalidKey
	}
	return s.principalPrefix(principal) + jti, nil
}

func (s *Store) indexKey(principal string) string {
	return s.prefix + "-idx" + separator + principal
}

// Put creates or overwrites the marker for (principal, jti).
func (s *Store) Put(ctx context.Context, principal, jti string, ttl time.Duration) error {
	key, err := s.key(principal, jti)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, key, markerValue, ttl); err != nil {
		return fmt.Errorf("put marker: %w", err)
	}
	if s.strategy == IndexedSet {
		if err := s.kv.SetAdd(ctx, s.indexKey(principal), ttl, jti); err != nil {
			return fmt.Errorf("index marker: %w", err)
		}
	}
	return nil
}

// Exists reports whether the marker for (principal, jti) is present.
func (s *Store) Exists(ctx context.Context, principal, jti string) (bool, error) {
	key, err := s.key(principal, jti)
	if err != nil {
		return false, err
	}
	ok, err := s.kv.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check marker: %w", err)
	}
	return ok, nil
}

// Revoke deletes one marker. Revoking an absent marker is not an error.
func (s *Store) Revoke(ctx context.Context, principal, jti string) error {
	_, err := s.Consume(ctx, principal, jti)
	return err
}

// Consume deletes the marker and reports whether this call removed it. Exactly
// one of any number of concurrent callers observes true.
func (s *Store) Consume(ctx context.Context, principal, jti string) (bool, error) {
	key, err := s.key(principal, jti)
	if err != nil {
		return false, err
	}
	n, err := s.kv.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("delete marker: %w", err)
	}
	if s.strategy == IndexedSet {
		if err := s.kv.SetRemove(ctx, s.indexKey(principal), jti); err != nil {
			return n == 1, fmt.Errorf("unindex marker: %w", err)
		}
	}
	return n == 1, nil
}

// RevokeAll deletes every marker of principal and returns how many existed.
// It is not atomic with respect to concurrent Puts for the same principal.
func (s *Store) RevokeAll(ctx context.Context, principal string) (int, error) {
	if !validComponent(principal) {
		return 0, ErrInvalidKey
	}

	var keys []string
	switch s.strategy {
	case IndexedSet:
		ids, err := s.kv.SetMembers(ctx, s.indexKey(principal))
		if err != nil {
			return 0, fmt.Errorf("read marker index: %w", err)
		}
		keys = make([]string, 0, len(ids))
		for _, id := range ids {
			if validComponent(id) {
				keys = append(keys, s.principalPrefix(principal)+id)
			}
		}
	default:
		found, err := s.kv.ScanPrefix(ctx, s.principalPrefix(principal))
		if err != nil {
			return 0, fmt.Errorf("scan markers: %w", err)
		}
		keys = found
	}

	var removed int64
	for start := 0; start < len(keys); start += s.deleteBatch {
		end := start + s.deleteBatch
		if end > len(keys) {
			end = len(keys)
		}
		n, err := s.kv.Delete(ctx, keys[start:end]...)
		if err != nil {
			return int(removed), fmt.Errorf("delete markers: %w", err)
		}
		removed += n
	}

	if s.strategy == IndexedSet {
		if _, err := s.kv.Delete(ctx, s.indexKey(principal)); err != nil {
			return int(removed), fmt.Errorf("delete marker index: %w", err)
		}
	}
	return int(removed), nil
}

// List returns the credential ids of principal's live markers.
func (s *Store) List(ctx context.Context, principal string) ([]string, error) {
	if !validComponent(principal) {
		return nil, ErrInvalidKey
	}
	prefix := s.principalPrefix(principal)

	if s.strategy == IndexedSet {
		ids, err := s.kv.SetMembers(ctx, s.indexKey(principal))
		if err != nil {
			return nil, fmt.Errorf("read marker index: %w", err)
		}
		live := make([]string, 0, len(ids))
		for _, id := range ids {
			if !validComponent(id) {
				continue
			}
			ok, err := s.kv.Exists(ctx, prefix+id)
			if err != nil {
				return nil, fmt.Errorf("check marker: %w", err)
			}
			if ok {
				live = append(live, id)
			}
		}
		return live, nil
	}

	keys, err := s.kv.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan markers: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, prefix))
	}
	return ids, nil
}
