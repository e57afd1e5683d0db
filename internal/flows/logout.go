package flows

import (
	"context"
	"errors"

	"github.com/rkhaya/express-session-jwt/revocation"
)

// LogoutFailureKind classifies logout failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureInvalidToken
	LogoutFailureStoreUnavailable
)

// LogoutResult reports how many renewal markers were removed.
type LogoutResult struct {
	Failure     LogoutFailureKind
	Err         error
	PrincipalID string
	Revoked     int
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Codec   TokenCodec
	Markers MarkerStore
}

// RunLogout verifies a renewal credential and revokes every marker of its
// principal. A credential whose own marker is already gone still logs out.
func RunLogout(ctx context.Context, renewalToken string, deps LogoutDeps) LogoutResult {
	claims, err := deps.Codec.VerifyRenewal(renewalToken)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureInvalidToken, Err: err}
	}
	return RunRevokeAll(ctx, claims.Subject, deps)
}

// RunRevokeAll revokes every renewal marker of principalID.
func RunRevokeAll(ctx context.Context, principalID string, deps LogoutDeps) LogoutResult {
	n, err := deps.Markers.RevokeAll(ctx, principalID)
	if err != nil {
		kind := LogoutFailureStoreUnavailable
		if errors.Is(err, revocation.ErrInvalidKey) {
			kind = LogoutFailureInvalidToken
		}
		return LogoutResult{Failure: kind, Err: err, PrincipalID: principalID, Revoked: n}
	}
	return LogoutResult{PrincipalID: principalID, Revoked: n}
}
