package flows

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rkhaya/express-session-jwt/internal/rate"
	"github.com/rkhaya/express-session-jwt/jwt"
	"github.com/rkhaya/express-session-jwt/kv"
)

// TokenCodec mints and verifies credential pairs. *jwt.Codec satisfies it.
type TokenCodec interface {
	Issue(principalID string) (jwt.Issued, error)
	VerifyAccess(token string) (*jwt.Claims, error)
	VerifyRenewal(token string) (*jwt.Claims, error)
	RenewalTTL() time.Duration
}

// MarkerStore is the revocation store surface used by the flows.
// *revocation.Store satisfies it.
type MarkerStore interface {
	Put(ctx context.Context, principal, jti string, ttl time.Duration) error
	Exists(ctx context.Context, principal, jti string) (bool, error)
	Revoke(ctx context.Context, principal, jti string) error
	Consume(ctx context.Context, principal, jti string) (bool, error)
	RevokeAll(ctx context.Context, principal string) (int, error)
}

// LoginLimiter is the failed-attempt limiter. *rate.LoginLimiter satisfies it.
type LoginLimiter interface {
	Reserve(ctx context.Context, ip, identity string) (rate.Decision, error)
	Release(ctx context.Context, ip, identity string) error
}

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Login    LoginDeps
	Rotate   RotateDeps
	Logout   LogoutDeps
	Validate ValidateDeps
}

// isStoreFault reports whether err came from the key-value layer rather than
// from a malformed key.
func isStoreFault(err error) bool {
	return errors.Is(err, kv.ErrUnavailable)
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
