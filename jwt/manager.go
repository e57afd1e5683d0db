package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rkhaya/express-session-jwt/internal"
)

// Kind names the credential class carried in the "typ" claim.
type Kind string

const (
	// KindAccess marks short-lived access credentials.
	KindAccess Kind = "access"
	// KindRenewal marks renewal credentials that can be exchanged once for a new pair.
	KindRenewal Kind = "renewal"
)

// ErrInvalidToken wraps every verification failure: malformed input, bad
// signature, unexpected algorithm, expiry, wrong class or missing claims.
var ErrInvalidToken = errors.New("jwt: invalid token")

// minSecretLen is the HS256 key length floor (the hash output size).
const minSecretLen = 32

// Config describes one credential class.
//
// Config is read once by NewManager; later mutation has no effect.
type Config struct {
	Kind     Kind
	TTL      time.Duration
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration

	// Now is the clock used for minting and expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Manager mints and verifies credentials of a single class with HS256.
type Manager struct {
	config Config
	parser *jwt.Parser
}

// Claims is the claim set shared by both credential classes. Subject holds the
// principal identifier; ID holds the credential identifier of renewal credentials.
type Claims struct {
	Kind Kind `json:"typ"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config) (*Manager, error) {
	switch cfg.Kind {
	case KindAccess, KindRenewal:
	default:
		return nil, fmt.Errorf("unsupported credential kind %q", cfg.Kind)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%s secret is required", cfg.Kind)
	}
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("%s secret must be at least %d bytes", cfg.Kind, minSecretLen)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Manager{config: cfg, parser: jwt.NewParser(options...)}, nil
}

// Kind reports the credential class this manager handles.
func (m *Manager) Kind() Kind {
	return m.config.Kind
}

// TTL reports the configured lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Mint signs a credential for subject. jti may be empty for access credentials.
func (m *Manager) Mint(subject, jti string) (string, *Claims, error) {
	if subject == "" {
		return "", nil, errors.New("subject is required")
	}
	if m.config.Kind == KindRenewal {
		if _, err := internal.ParseCredentialID(jti); err != nil {
			return "", nil, errors.New("renewal credential requires a 128-bit base64url id")
		}
	}

	now := m.config.Now()
	claims := &Claims{
		Kind: m.config.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies tokenStr and returns its claims. A credential is expired from
// the exact instant of its exp claim onwards.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	token, err := m.parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, jwt.ErrTokenInvalidClaims)
	}
	if claims.Kind != m.config.Kind {
		return nil, fmt.Errorf("%w: credential class %q, want %q", ErrInvalidToken, claims.Kind, m.config.Kind)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if m.config.Kind == KindRenewal {
		if claims.ID == "" {
			return nil, fmt.Errorf("%w: missing credential id", ErrInvalidToken)
		}
		if _, err := internal.ParseCredentialID(claims.ID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
	}

	return claims, nil
}
