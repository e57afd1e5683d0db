package sessionjwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rkhaya/express-session-jwt/internal/audit"
	"github.com/rkhaya/express-session-jwt/internal/flows"
	"github.com/rkhaya/express-session-jwt/internal/rate"
	"github.com/rkhaya/express-session-jwt/jwt"
	"github.com/rkhaya/express-session-jwt/kv"
	"github.com/rkhaya/express-session-jwt/revocation"
	"github.com/rkhaya/express-session-jwt/session"
)

// Engine runs the credential lifecycle: login, rotation, logout and access
// validation. It is safe for concurrent use once built.
type Engine struct {
	config      Config
	store       kv.Store
	ownsStore   bool
	codec       *jwt.Codec
	markers     *revocation.Store
	limiter     *rate.LoginLimiter
	sessions    *session.Store
	users       UserProvider
	lookupTTL   time.Duration
	audit       *audit.Dispatcher
	metrics     *Metrics
	log         *zap.Logger
	clock       func() time.Time
	flowService flows.Service
}

// Close flushes pending audit events and closes the store when the engine
// dialed it itself.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.ownsStore && e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Ping checks the key-value store.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.store.Ping(ctx); err != nil {
		return storeError(err)
	}
	return nil
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flowService.Initialized()
}

func (e *Engine) findUser(ctx context.Context, identifier string) (flows.LoginUserRecord, error) {
	u, err := e.lookupUser(ctx, func(ctx context.Context) (UserRecord, error) {
		return e.users.GetUserByIdentifier(ctx, identifier)
	})
	if err != nil {
		return flows.LoginUserRecord{}, err
	}
	return flows.LoginUserRecord{
		UserID:       u.UserID,
		Identifier:   u.Identifier,
		DisplayName:  u.DisplayName,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
	}, nil
}

// lookupUser runs one UserProvider call under the lookup timeout. An unknown
// identity stays [ErrUserNotFound]; any other failure is a store fault.
func (e *Engine) lookupUser(ctx context.Context, fn func(context.Context) (UserRecord, error)) (UserRecord, error) {
	timeout := e.lookupTTL
	if timeout <= 0 {
		timeout = kv.DefaultOperationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u, err := fn(ctx)
	if err != nil && !errors.Is(err, ErrUserNotFound) && !errors.Is(err, ErrStoreUnavailable) {
		return UserRecord{}, storeError(err)
	}
	return u, err
}

func toTokenPair(issued jwt.Issued) TokenPair {
	return TokenPair{
		AccessToken:      issued.AccessToken,
		RefreshToken:     issued.RenewalToken,
		AccessExpiresAt:  issued.AccessExpiresAt,
		RefreshExpiresAt: issued.RenewalExpiresAt,
	}
}

/*
====================================
LOGIN
====================================
*/

// Login authenticates identifier/password and issues a pair. The client IP
// comes from [WithClientIP]. Unknown identities and wrong passwords both
// return [ErrInvalidCredentials]; a blocked origin returns *[RateLimitError].
func (e *Engine) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	res := e.flowService.Login(ctx, identifier, password, ip)
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		rle := newRateLimitError(res.Decision)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", rle, func() map[string]string {
			return map[string]string{"retry_after": rle.RetryAfter.Round(time.Second).String()}
		})
		return nil, rle
	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	case flows.LoginFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		e.log.Error("login store fault", zap.String("request_id", RequestIDFromContext(ctx)), zap.Error(res.Err))
		err := storeError(res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.User.UserID, "", err, nil)
		return nil, err
	case flows.LoginFailureUserLookup:
		e.metricInc(MetricStoreUnavailable)
		e.log.Error("user lookup failed", zap.String("request_id", RequestIDFromContext(ctx)), zap.Error(res.Err))
		err := res.Err
		if !errors.Is(err, ErrStoreUnavailable) {
			err = storeError(err)
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", err, nil)
		return nil, err
	case flows.LoginFailureIssue:
		e.log.Error("credential issue failed", zap.Error(res.Err))
		return nil, fmt.Errorf("%w: %v", ErrCredentialIssue, res.Err)
	default:
		return nil, ErrEngineNotReady
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.User.UserID, res.Issued.CredentialID, nil, nil)

	return &LoginResult{
		Pair: toTokenPair(res.Issued),
		Principal: Principal{
			ID:          res.User.UserID,
			Identifier:  res.User.Identifier,
			DisplayName: res.User.DisplayName,
			Role:        res.User.Role,
		},
		RateLimit: RateLimitStatus{
			Limit:     res.Decision.Limit,
			Remaining: res.Decision.Remaining,
			Window:    res.Decision.Window,
		},
	}, nil
}

/*
====================================
ROTATION
====================================
*/

// Refresh exchanges a renewal credential for a new pair and invalidates the
// presented one. Once started, a rotation is not cut short by cancellation
// of ctx; each store call is still bounded by the operation timeout.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricRotateLatency, time.Since(start))
		}
	}()

	res := e.flowService.Rotate(context.WithoutCancel(ctx), refreshToken)
	if res.State == flows.RotateDone {
		e.metricInc(MetricRotateSuccess)
		e.emitAudit(ctx, auditEventRotateSuccess, true, res.PrincipalID, res.Issued.CredentialID, nil, func() map[string]string {
			return map[string]string{"previous_credential_id": res.OldCredentialID}
		})
		pair := toTokenPair(res.Issued)
		return &pair, nil
	}

	var err error
	switch res.Failure {
	case flows.RotateFailureInvalidToken:
		e.metricInc(MetricRotateRejected)
		err = ErrInvalidToken
	case flows.RotateFailureExpiredOrRevoked:
		e.metricInc(MetricRotateReplay)
		err = ErrExpiredOrRevoked
	case flows.RotateFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		if res.LastState >= flows.RotateOldRevoked {
			e.metricInc(MetricRotateStranded)
		}
		e.log.Error("rotation store fault",
			zap.String("state", res.LastState.String()),
			zap.String("request_id", RequestIDFromContext(ctx)),
			zap.Error(res.Err))
		err = storeError(res.Err)
	case flows.RotateFailureIssue:
		e.metricInc(MetricRotateStranded)
		err = fmt.Errorf("%w: %v", ErrCredentialIssue, res.Err)
	default:
		err = ErrEngineNotReady
	}

	event := auditEventRotateRejected
	if res.LastState >= flows.RotateOldRevoked {
		event = auditEventRotateStranded
	}
	e.emitAudit(ctx, event, false, res.PrincipalID, res.OldCredentialID, err, func() map[string]string {
		return map[string]string{"state": res.LastState.String()}
	})
	return nil, err
}

/*
====================================
LOGOUT
====================================
*/

// Logout verifies a renewal credential and revokes every renewal credential
// of its principal. Outstanding access credentials remain valid until they
// expire. It returns the number of markers removed.
func (e *Engine) Logout(ctx context.Context, refreshToken string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	res := e.flowService.Logout(ctx, refreshToken)
	return e.finishLogout(ctx, auditEventLogout, MetricLogout, res)
}

// RevokeAll revokes every renewal credential of principalID.
func (e *Engine) RevokeAll(ctx context.Context, principalID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if principalID == "" {
		return 0, fmt.Errorf("%w: principal id is required", ErrValidation)
	}
	res := e.flowService.RevokeAll(ctx, principalID)
	return e.finishLogout(ctx, auditEventRevokeAll, MetricRevokeAll, res)
}

func (e *Engine) finishLogout(ctx context.Context, event string, metric MetricID, res flows.LogoutResult) (int, error) {
	var err error
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(metric)
		e.emitAudit(ctx, event, true, res.PrincipalID, "", nil, func() map[string]string {
			return map[string]string{"revoked": strconv.Itoa(res.Revoked)}
		})
		return res.Revoked, nil
	case flows.LogoutFailureInvalidToken:
		err = ErrInvalidToken
	case flows.LogoutFailureStoreUnavailable:
		e.metricInc(MetricStoreUnavailable)
		e.log.Error("revocation store fault", zap.String("principal", res.PrincipalID), zap.Error(res.Err))
		err = storeError(res.Err)
	default:
		err = ErrEngineNotReady
	}
	e.emitAudit(ctx, event, false, res.PrincipalID, "", err, nil)
	return res.Revoked, err
}

/*
====================================
VALIDATION
====================================
*/

// ValidateAccess verifies an access credential. It never touches the store.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if tokenStr == "" {
		return nil, ErrUnauthenticated
	}
	start := time.Now()
	res := e.flowService.Validate(tokenStr)
	if e.metrics != nil {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if res.Failure != flows.ValidateFailureNone {
		e.metricInc(MetricValidateFailure)
		e.log.Debug("access credential rejected",
			zap.String("request_id", RequestIDFromContext(ctx)),
			zap.Error(res.Err))
		return nil, ErrInvalidToken
	}
	e.metricInc(MetricValidateSuccess)

	out := &AuthResult{UserID: res.Claims.Subject}
	if res.Claims.IssuedAt != nil {
		out.IssuedAt = res.Claims.IssuedAt.Time
	}
	if res.Claims.ExpiresAt != nil {
		out.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return out, nil
}

// Principal loads the account for an authenticated user ID.
func (e *Engine) Principal(ctx context.Context, userID string) (Principal, error) {
	if !e.ready() {
		return Principal{}, ErrEngineNotReady
	}
	u, err := e.lookupUser(ctx, func(ctx context.Context) (UserRecord, error) {
		return e.users.GetUserByID(ctx, userID)
	})
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		ID:          u.UserID,
		Identifier:  u.Identifier,
		DisplayName: u.DisplayName,
		Role:        u.Role,
	}, nil
}

// ListCredentials returns the credential IDs with a live renewal marker for
// principalID.
func (e *Engine) ListCredentials(ctx context.Context, principalID string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ids, err := e.markers.List(ctx, principalID)
	if err != nil {
		if errors.Is(err, revocation.ErrInvalidKey) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, storeError(err)
	}
	return ids, nil
}

/*
====================================
COOKIE SESSIONS
====================================
*/

// SessionsEnabled reports whether cookie sessions are configured.
func (e *Engine) SessionsEnabled() bool {
	return e != nil && e.sessions != nil
}

// SessionCookieName is the cookie carrying the signed session ID.
func (e *Engine) SessionCookieName() string {
	if e == nil {
		return ""
	}
	return e.config.Session.CookieName
}

// CreateSession stores a session for p and returns the signed cookie value.
func (e *Engine) CreateSession(ctx context.Context, p Principal) (string, *session.Session, error) {
	if !e.SessionsEnabled() {
		return "", nil, ErrEngineNotReady
	}
	sess := &session.Session{
		UserID:      p.ID,
		Identifier:  p.Identifier,
		DisplayName: p.DisplayName,
		Role:        p.Role,
	}
	id, err := e.sessions.Create(ctx, sess)
	if err != nil {
		if errors.Is(err, kv.ErrUnavailable) {
			return "", nil, storeError(err)
		}
		return "", nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, p.ID, "", nil, nil)
	return session.SignID(id, e.config.Session.Secret), sess, nil
}

// LoadSession resolves a signed cookie value. Unsigned, tampered, expired or
// unknown cookies return [ErrUnauthenticated].
func (e *Engine) LoadSession(ctx context.Context, cookieValue string) (*session.Session, error) {
	if !e.SessionsEnabled() {
		return nil, ErrEngineNotReady
	}
	id, ok := session.UnsignID(cookieValue, e.config.Session.Secret)
	if !ok {
		return nil, ErrUnauthenticated
	}
	sess, err := e.sessions.Get(ctx, id)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCorrupt):
		return nil, ErrUnauthenticated
	default:
		return nil, storeError(err)
	}
}

// DestroySession removes the session behind a signed cookie value. Invalid
// cookies are ignored.
func (e *Engine) DestroySession(ctx context.Context, cookieValue string) error {
	if !e.SessionsEnabled() {
		return ErrEngineNotReady
	}
	id, ok := session.UnsignID(cookieValue, e.config.Session.Secret)
	if !ok {
		return nil
	}
	if err := e.sessions.Destroy(ctx, id); err != nil {
		return storeError(err)
	}
	e.metricInc(MetricSessionDestroyed)
	e.emitAudit(ctx, auditEventSessionDestroyed, true, "", "", nil, nil)
	return nil
}
