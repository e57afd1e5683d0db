package flows

import (
	"errors"
	"time"

	"github.com/rkhaya/express-session-jwt/jwt"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureUnauthorized
	ValidateFailureTokenClockSkew
)

// ValidateResult returns either claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
}

// ValidateDeps captures access validation dependencies.
type ValidateDeps struct {
	Codec        TokenCodec
	Now          func() time.Time
	MaxClockSkew time.Duration
}

// RunValidate verifies an access credential. No store is consulted: access
// credentials stay valid until expiry even after their principal logs out.
func RunValidate(tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Codec.VerifyAccess(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureUnauthorized, Err: err}
	}
	if deps.Now != nil && deps.MaxClockSkew >= 0 && claims.IssuedAt != nil {
		if claims.IssuedAt.Time.After(deps.Now().Add(deps.MaxClockSkew)) {
			return ValidateResult{Failure: ValidateFailureTokenClockSkew, Err: errors.New("token issued in the future")}
		}
	}
	return ValidateResult{Claims: claims}
}
