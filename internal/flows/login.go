package flows

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/rkhaya/express-session-jwt/internal/rate"
	"github.com/rkhaya/express-session-jwt/jwt"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureStoreUnavailable
	LoginFailureUserLookup
	LoginFailureIssue
)

// LoginUserRecord is a flow-local user model.
type LoginUserRecord struct {
	UserID       string
	Identifier   string
	DisplayName  string
	Role         string
	PasswordHash string
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Failure  LoginFailureKind
	Err      error
	Decision rate.Decision
	User     LoginUserRecord
	Issued   jwt.Issued
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	// Limiter may be nil to disable failed-attempt limiting.
	Limiter LoginLimiter

	FindUser       func(ctx context.Context, identifier string) (LoginUserRecord, error)
	UserNotFound   error
	VerifyPassword func(password, encodedHash string) (bool, error)

	// DummyHash is verified against when the identity is unknown so both
	// rejection paths cost one password verification.
	DummyHash string

	Codec   TokenCodec
	Markers MarkerStore

	Logger *zap.Logger
}

// RunLogin reserves a limiter slot, authenticates identifier/password and
// issues a pair with its revocation marker. The slot is kept only when
// authentication fails; every other outcome hands it back.
func RunLogin(ctx context.Context, identifier, password, ip string, deps LoginDeps) LoginResult {
	log := logger(deps.Logger)
	identifier = strings.TrimSpace(identifier)

	var res LoginResult
	if deps.Limiter != nil {
		d, err := deps.Limiter.Reserve(ctx, ip, identifier)
		if err != nil {
			return LoginResult{Failure: LoginFailureStoreUnavailable, Err: err}
		}
		res.Decision = d
		if !d.Allowed {
			return LoginResult{Failure: LoginFailureRateLimited, Err: rate.ErrRateLimited, Decision: d}
		}
	}

	if identifier == "" || password == "" {
		return rejectLogin(res, nil)
	}

	user, err := deps.FindUser(ctx, identifier)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			if deps.DummyHash != "" {
				_, _ = deps.VerifyPassword(password, deps.DummyHash)
			}
			return rejectLogin(res, err)
		}
		res.Failure = LoginFailureUserLookup
		res.Err = err
		return releaseSlot(ctx, res, identifier, ip, deps, log)
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		log.Warn("password verification failed", zap.String("user_id", user.UserID), zap.Error(err))
	}
	if err != nil || !ok {
		return rejectLogin(res, err)
	}

	issued, err := deps.Codec.Issue(user.UserID)
	if err != nil {
		res.Failure = LoginFailureIssue
		res.Err = err
		return releaseSlot(ctx, res, identifier, ip, deps, log)
	}
	if err := deps.Markers.Put(ctx, user.UserID, issued.CredentialID, deps.Codec.RenewalTTL()); err != nil {
		res.Failure = LoginFailureStoreUnavailable
		if !isStoreFault(err) {
			res.Failure = LoginFailureIssue
		}
		res.Err = err
		return releaseSlot(ctx, res, identifier, ip, deps, log)
	}

	user.PasswordHash = ""
	res.User = user
	res.Issued = issued
	return releaseSlot(ctx, res, identifier, ip, deps, log)
}

// rejectLogin keeps the reserved slot: it is the counted failure.
func rejectLogin(res LoginResult, cause error) LoginResult {
	res.Failure = LoginFailureInvalidCredentials
	res.Err = cause
	return res
}

func releaseSlot(ctx context.Context, res LoginResult, identifier, ip string, deps LoginDeps, log *zap.Logger) LoginResult {
	if deps.Limiter == nil {
		return res
	}
	if err := deps.Limiter.Release(ctx, ip, identifier); err != nil {
		// The outcome stands; the slot lapses with the window.
		log.Warn("login attempt not released", zap.Error(err))
		return res
	}
	if res.Decision.Remaining < res.Decision.Limit {
		res.Decision.Remaining++
	}
	return res
}
