package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rkhaya/express-session-jwt/kv"
)

const (
	// DefaultPrefix namespaces session records in the store.
	DefaultPrefix = "myapp:"
	// DefaultCookieName is the browser cookie carrying the signed session id.
	DefaultCookieName = "connect.sid"
	// DefaultTTL is the session lifetime.
	DefaultTTL = 24 * time.Hour
)

var (
	// ErrNotFound is returned when the session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrCorrupt is returned when a stored session cannot be decoded.
	ErrCorrupt = errors.New("session corrupt")
)

// Store persists sessions in a kv.Store.
type Store struct {
	kv     kv.Store
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewStore creates a session store. Empty prefix and non-positive ttl take
// the package defaults.
func NewStore(s kv.Store, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{kv: s, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// TTL reports the session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create assigns a fresh id to sess, stamps its lifetime and saves it.
func (s *Store) Create(ctx context.Context, sess *Session) (string, error) {
	if sess == nil || sess.UserID == "" {
		return "", errors.New("session requires a user id")
	}

	now := s.now()
	sess.SessionID = uuid.NewString()
	sess.SchemaVersion = sessionFormatVersionCurrent
	sess.CreatedAt = now.Unix()
	sess.ExpiresAt = now.Add(s.ttl).Unix()

	data, err := Encode(sess)
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, s.key(sess.SessionID), string(data), s.ttl); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return sess.SessionID, nil
}

// Get loads a session. Expired or unknown sessions return ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}

	raw, err := s.kv.Get(ctx, s.key(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess, err := Decode([]byte(raw))
	if err != nil {
		return nil, err
	}
	if sess.ExpiresAt <= s.now().Unix() {
		_, _ = s.kv.Delete(ctx, s.key(sessionID))
		return nil, ErrNotFound
	}
	sess.SessionID = sessionID
	return sess, nil
}

// Destroy removes a session. Destroying an unknown session is not an error.
func (s *Store) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if _, err := s.kv.Delete(ctx, s.key(sessionID)); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
