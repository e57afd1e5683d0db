package flows

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rkhaya/express-session-jwt/jwt"
	"github.com/rkhaya/express-session-jwt/revocation"
)

// RotateState is a step of the renewal state machine.
type RotateState int

const (
	RotatePresented RotateState = iota
	RotateVerified
	RotateOldChecked
	RotateOldRevoked
	RotateNewIssued
	RotateNewStored
	RotateDone
	RotateRejected
)

func (s RotateState) String() string {
	switch s {
	case RotatePresented:
		return "presented"
	case RotateVerified:
		return "verified"
	case RotateOldChecked:
		return "old_checked"
	case RotateOldRevoked:
		return "old_revoked"
	case RotateNewIssued:
		return "new_issued"
	case RotateNewStored:
		return "new_stored"
	case RotateDone:
		return "done"
	case RotateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RotateFailureKind classifies rotation failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureInvalidToken
	RotateFailureExpiredOrRevoked
	RotateFailureStoreUnavailable
	RotateFailureIssue
)

// RotateResult carries either the new pair or failure metadata. LastState is
// the furthest state reached before State became RotateRejected.
type RotateResult struct {
	State           RotateState
	LastState       RotateState
	Failure         RotateFailureKind
	Err             error
	PrincipalID     string
	OldCredentialID string
	Issued          jwt.Issued
}

// RotateDeps captures rotation flow dependencies.
type RotateDeps struct {
	Codec   TokenCodec
	Markers MarkerStore

	// ExactlyOnce replaces the exists-then-revoke pair with a single atomic
	// consume so two concurrent presentations cannot both succeed.
	ExactlyOnce bool

	Logger *zap.Logger
}

func rejectRotate(res RotateResult, kind RotateFailureKind, err error) RotateResult {
	res.LastState = res.State
	res.State = RotateRejected
	res.Failure = kind
	res.Err = err
	return res
}

func storeFailure(err error) RotateFailureKind {
	if errors.Is(err, revocation.ErrInvalidKey) {
		return RotateFailureInvalidToken
	}
	return RotateFailureStoreUnavailable
}

// RunRotate exchanges a renewal credential for a new pair. Steps run in strict
// order; any store fault rejects the attempt.
func RunRotate(ctx context.Context, renewalToken string, deps RotateDeps) RotateResult {
	log := logger(deps.Logger)
	res := RotateResult{State: RotatePresented}

	claims, err := deps.Codec.VerifyRenewal(renewalToken)
	if err != nil {
		return rejectRotate(res, RotateFailureInvalidToken, err)
	}
	res.State = RotateVerified
	res.PrincipalID = claims.Subject
	res.OldCredentialID = claims.ID

	if deps.ExactlyOnce {
		consumed, err := deps.Markers.Consume(ctx, claims.Subject, claims.ID)
		if err != nil {
			return rejectRotate(res, storeFailure(err), err)
		}
		res.State = RotateOldChecked
		if !consumed {
			return rejectRotate(res, RotateFailureExpiredOrRevoked, nil)
		}
		res.State = RotateOldRevoked
	} else {
		ok, err := deps.Markers.Exists(ctx, claims.Subject, claims.ID)
		if err != nil {
			return rejectRotate(res, storeFailure(err), err)
		}
		res.State = RotateOldChecked
		if !ok {
			return rejectRotate(res, RotateFailureExpiredOrRevoked, nil)
		}

		if err := deps.Markers.Revoke(ctx, claims.Subject, claims.ID); err != nil {
			return rejectRotate(res, storeFailure(err), err)
		}
		res.State = RotateOldRevoked
	}

	issued, err := deps.Codec.Issue(claims.Subject)
	if err != nil {
		log.Error("rotation stranded principal: issue failed after revoke",
			zap.String("principal", claims.Subject), zap.Error(err))
		return rejectRotate(res, RotateFailureIssue, err)
	}
	res.State = RotateNewIssued

	if err := deps.Markers.Put(ctx, claims.Subject, issued.CredentialID, deps.Codec.RenewalTTL()); err != nil {
		log.Warn("rotation stranded principal: new marker not stored",
			zap.String("principal", claims.Subject), zap.Error(err))
		return rejectRotate(res, storeFailure(err), err)
	}
	res.State = RotateNewStored

	res.Issued = issued
	res.State = RotateDone
	return res
}
