package jwt

import (
	"bytes"
	"errors"
	"time"

	"github.com/rkhaya/express-session-jwt/internal"
)

const (
	// DefaultAccessTTL is the access credential lifetime.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRenewalTTL is the renewal credential lifetime.
	DefaultRenewalTTL = 7 * 24 * time.Hour
)

// CodecConfig configures both credential classes. The two secrets must differ.
type CodecConfig struct {
	AccessSecret  []byte
	RenewalSecret []byte
	AccessTTL     time.Duration
	RenewalTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
	Now           func() time.Time
}

// Issued is the output of Codec.Issue.
type Issued struct {
	AccessToken      string
	RenewalToken     string
	CredentialID     string
	AccessExpiresAt  time.Time
	RenewalExpiresAt time.Time
}

// Codec signs and verifies access and renewal credentials. It holds no
// mutable state and is safe for concurrent use.
type Codec struct {
	access  *Manager
	renewal *Manager
	newID   func() (string, error)
}

// NewCodec validates cfg and builds both managers. Missing or shared secrets
// are configuration errors.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RenewalSecret) == 0 {
		return nil, errors.New("both access and renewal secrets are required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RenewalSecret) {
		return nil, errors.New("access and renewal secrets must differ")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RenewalTTL == 0 {
		cfg.RenewalTTL = DefaultRenewalTTL
	}

	access, err := NewManager(Config{
		Kind:     KindAccess,
		TTL:      cfg.AccessTTL,
		Secret:   cfg.AccessSecret,
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   cfg.Leeway,
		Now:      cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	renewal, err := NewManager(Config{
		Kind:     KindRenewal,
		TTL:      cfg.RenewalTTL,
		Secret:   cfg.RenewalSecret,
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   cfg.Leeway,
		Now:      cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	return &Codec{access: access, renewal: renewal, newID: newCredentialID}, nil
}

func newCredentialID() (string, error) {
	id, err := internal.NewCredentialID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// RenewalTTL reports the renewal credential lifetime, which is also the
// revocation marker lifetime.
func (c *Codec) RenewalTTL() time.Duration {
	return c.renewal.TTL()
}

// AccessTTL reports the access credential lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.access.TTL()
}

// Issue mints a fresh access/renewal pair for principalID with a new credential id.
func (c *Codec) Issue(principalID string) (Issued, error) {
	jti, err := c.newID()
	if err != nil {
		return Issued{}, err
	}

	accessToken, accessClaims, err := c.access.Mint(principalID, "")
	if err != nil {
		return Issued{}, err
	}
	renewalToken, renewalClaims, err := c.renewal.Mint(principalID, jti)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		AccessToken:      accessToken,
		RenewalToken:     renewalToken,
		CredentialID:     jti,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RenewalExpiresAt: renewalClaims.ExpiresAt.Time,
	}, nil
}

// VerifyAccess checks an access credential against the access secret.
func (c *Codec) VerifyAccess(token string) (*Claims, error) {
	return c.access.Parse(token)
}

// VerifyRenewal checks a renewal credential against the renewal secret and
// requires its credential id.
func (c *Codec) VerifyRenewal(token string) (*Claims, error) {
	return c.renewal.Parse(token)
}
