package sessionjwt

import (
	"context"
	"time"
)

// UserProvider looks up accounts. Implementations must return an error
// matching [ErrUserNotFound] for unknown identities so that login can treat
// them like a wrong password.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
}

// UserRecord is the account record returned by a [UserProvider].
type UserRecord struct {
	UserID       string
	Identifier   string
	DisplayName  string
	Role         string
	PasswordHash string
}

// PasswordVerifier checks a plaintext secret against a stored hash.
// *password.Argon2 satisfies it.
type PasswordVerifier interface {
	Verify(password, encodedHash string) (bool, error)
}

// Principal is the identity carried by a credential. It never includes the
// password hash.
type Principal struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role,omitempty"`
}

// TokenPair is one access credential and one renewal credential minted
// together for the same principal.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// LoginResult is returned by a successful [Engine.Login].
type LoginResult struct {
	Pair      TokenPair
	Principal Principal
	// RateLimit is the limiter state seen before the attempt; the zero
	// value when limiting is disabled.
	RateLimit RateLimitStatus
}

// RateLimitStatus mirrors the limiter decision for response headers.
type RateLimitStatus struct {
	Limit     int
	Remaining int
	Window    time.Duration
}

// AuthResult is returned by [Engine.ValidateAccess].
type AuthResult struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
