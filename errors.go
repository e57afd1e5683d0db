package sessionjwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/rkhaya/express-session-jwt/internal/rate"
)

var (
	// ErrInvalidCredentials is returned for any failed login, whether the
	// identity is unknown or the secret is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when a credential fails signature, algorithm,
	// expiry or claim checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredOrRevoked is returned when a renewal credential verifies but its
	// revocation marker is gone: expired, logged out or already rotated.
	ErrExpiredOrRevoked = errors.New("renewal credential expired or revoked")
	// ErrRateLimited is matched by every *RateLimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable is returned when the key-value store times out or
	// fails. It is never reported as a credential rejection.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrValidation reports malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrEngineNotReady is returned by a zero or partially built Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrUnauthenticated is returned when a request carries no credential at all.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound is returned by a UserProvider for unknown identities.
	ErrUserNotFound = errors.New("user not found")
	// ErrCredentialIssue is returned when new credentials could not be minted.
	ErrCredentialIssue = errors.New("credential issue failed")
)

// RateLimitMessage is the client-facing text for a rate-limited login.
const RateLimitMessage = rate.Message

// RateLimitError describes a rejected login attempt and the limiter state.
type RateLimitError struct {
	Message    string
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Window     time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

func newRateLimitError(d rate.Decision) *RateLimitError {
	return &RateLimitError{
		Message:    RateLimitMessage,
		Limit:      d.Limit,
		Remaining:  d.Remaining,
		RetryAfter: d.RetryAfter,
		Window:     d.Window,
	}
}

// storeError keeps the backend cause visible while matching ErrStoreUnavailable.
func storeError(err error) error {
	if err == nil {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
