package sessionjwt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rkhaya/express-session-jwt/kv"
	"github.com/rkhaya/express-session-jwt/password"
)

const (
	testIdentifier = "alice@example.com"
	testPassword   = "correct-password-123"
	testClientIP   = "203.0.113.7"
)

type testUserProvider struct {
	mu    sync.RWMutex
	users map[string]UserRecord
}

func newTestUserProvider(t testing.TB) *testUserProvider {
	t.Helper()

	hasher, err := password.NewArgon2(testPasswordConfig())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	return &testUserProvider{
		users: map[string]UserRecord{
			testIdentifier: {
				UserID:       "u1",
				Identifier:   testIdentifier,
				DisplayName:  "Alice",
				Role:         "member",
				PasswordHash: hash,
			},
		},
	}
}

func (p *testUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[identifier]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (p *testUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, u := range p.users {
		if u.UserID == userID {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func testPasswordConfig() password.Config {
	return password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdefghijklmnop")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-0123456789abcdefghijklmno")
	cfg.Store.OperationTimeout = 250 * time.Millisecond
	cfg.Password = PasswordConfig(testPasswordConfig())
	return cfg
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	engine, err := New().
		WithConfig(cfg).
		WithStore(kv.NewRedis(rdb)).
		WithUserProvider(newTestUserProvider(t)).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		_ = engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, mr
}

func clientCtx() context.Context {
	return WithClientIP(context.Background(), testClientIP)
}

func markerKey(t *testing.T, e *Engine, refreshToken string) string {
	t.Helper()

	claims, err := e.codec.VerifyRenewal(refreshToken)
	if err != nil {
		t.Fatalf("VerifyRenewal failed: %v", err)
	}
	return "refreshToken:" + claims.Subject + ":" + claims.ID
}

func TestRotationLifecycle(t *testing.T) {
	engine, mr := newTestEngine(t, testConfig())
	ctx := clientCtx()

	login, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if login.Principal.ID != "u1" || login.Principal.DisplayName != "Alice" {
		t.Fatalf("unexpected principal: %+v", login.Principal)
	}
	first := login.Pair.RefreshToken
	firstKey := markerKey(t, engine, first)
	if !mr.Exists(firstKey) {
		t.Fatalf("expected marker %q after login", firstKey)
	}

	next, err := engine.Refresh(ctx, first)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.RefreshToken == first {
		t.Fatal("rotation must mint a new renewal credential")
	}
	if mr.Exists(firstKey) {
		t.Fatal("old marker must be removed after rotation")
	}
	nextKey := markerKey(t, engine, next.RefreshToken)
	if !mr.Exists(nextKey) {
		t.Fatalf("expected new marker %q", nextKey)
	}

	ttl := mr.TTL(nextKey)
	if ttl <= 0 || ttl > engine.config.JWT.RefreshTTL {
		t.Fatalf("unexpected marker ttl %v", ttl)
	}

	// replaying the consumed credential is rejected without touching the new one
	if _, err := engine.Refresh(ctx, first); !errors.Is(err, ErrExpiredOrRevoked) {
		t.Fatalf("expected ErrExpiredOrRevoked on replay, got %v", err)
	}
	if !mr.Exists(nextKey) {
		t.Fatal("replay must not revoke the successor")
	}

	auth, err := engine.ValidateAccess(ctx, next.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if auth.UserID != "u1" {
		t.Fatalf("unexpected user id %q", auth.UserID)
	}

	revoked, err := engine.Logout(ctx, next.RefreshToken)
	if err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if revoked != 1 {
		t.Fatalf("expected 1 revoked marker, got %d", revoked)
	}
	if _, err := engine.Refresh(ctx, next.RefreshToken); !errors.Is(err, ErrExpiredOrRevoked) {
		t.Fatalf("expected ErrExpiredOrRevoked after logout, got %v", err)
	}

	// access credentials are not tracked and outlive logout
	if _, err := engine.ValidateAccess(ctx, next.AccessToken); err != nil {
		t.Fatalf("access credential should remain valid after logout: %v", err)
	}
}

func TestLoginRejectionsAreIndistinguishable(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := clientCtx()

	_, errUnknown := engine.Login(ctx, "nobody@example.com", testPassword)
	_, errWrong := engine.Login(ctx, testIdentifier, "wrong-password-123")

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("rejection messages differ: %q vs %q", errUnknown, errWrong)
	}
}

func TestLoginRateLimited(t *testing.T) {
	engine, mr := newTestEngine(t, testConfig())
	ctx := clientCtx()

	for i := 0; i < 5; i++ {
		_, err := engine.Login(ctx, testIdentifier, "wrong-password-123")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := engine.Login(ctx, testIdentifier, testPassword)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected *RateLimitError, got %T", err)
	}
	if rle.Message != RateLimitMessage {
		t.Fatalf("unexpected message %q", rle.Message)
	}
	if rle.RetryAfter <= 0 || rle.RetryAfter > 5*time.Minute {
		t.Fatalf("unexpected retry after %v", rle.RetryAfter)
	}

	// other origins are unaffected
	other := WithClientIP(context.Background(), "198.51.100.20")
	if _, err := engine.Login(other, testIdentifier, testPassword); err != nil {
		t.Fatalf("login from another origin failed: %v", err)
	}

	mr.FastForward(5*time.Minute + time.Second)
	if _, err := engine.Login(ctx, testIdentifier, testPassword); err != nil {
		t.Fatalf("login after window failed: %v", err)
	}
}

func TestConcurrentFailedLoginsBoundedPerWindow(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := clientCtx()

	const callers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		invalid int
		limited int
		other   []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Login(ctx, testIdentifier, "wrong-password-123")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				invalid++
			case errors.Is(err, ErrRateLimited):
				limited++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected login errors: %v", other)
	}
	if invalid != 5 {
		t.Fatalf("expected 5 credential checks in one window, got %d", invalid)
	}
	if limited != callers-5 {
		t.Fatalf("expected %d rate-limited logins, got %d", callers-5, limited)
	}
}

type faultyUserProvider struct {
	err   error
	calls int
	ctxOK bool
}

func (p *faultyUserProvider) GetUserByIdentifier(ctx context.Context, _ string) (UserRecord, error) {
	p.calls++
	_, p.ctxOK = ctx.Deadline()
	return UserRecord{}, p.err
}

func (p *faultyUserProvider) GetUserByID(ctx context.Context, _ string) (UserRecord, error) {
	p.calls++
	_, p.ctxOK = ctx.Deadline()
	return UserRecord{}, p.err
}

func TestUserStoreFaultIsStoreUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	users := &faultyUserProvider{err: context.DeadlineExceeded}
	cfg := testConfig()
	cfg.Store.UserLookupTimeout = 50 * time.Millisecond
	engine, err := New().
		WithConfig(cfg).
		WithStore(kv.NewRedis(rdb)).
		WithUserProvider(users).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	ctx := clientCtx()
	_, err = engine.Login(ctx, testIdentifier, testPassword)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("user store fault must not look like a rejection: %v", err)
	}
	if !users.ctxOK {
		t.Fatal("expected user lookup to run under a deadline")
	}

	// A lookup fault is not a failed attempt.
	n, err := engine.limiter.Attempts(ctx, testClientIP, testIdentifier)
	if err != nil {
		t.Fatalf("Attempts failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no counted failures, got %d", n)
	}

	users.ctxOK = false
	if _, err := engine.Principal(ctx, "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected Principal to report ErrStoreUnavailable, got %v", err)
	}
	if !users.ctxOK {
		t.Fatal("expected principal lookup to run under a deadline")
	}
}

type blockingUserProvider struct{}

func (blockingUserProvider) GetUserByIdentifier(ctx context.Context, _ string) (UserRecord, error) {
	<-ctx.Done()
	return UserRecord{}, ctx.Err()
}

func (blockingUserProvider) GetUserByID(ctx context.Context, _ string) (UserRecord, error) {
	<-ctx.Done()
	return UserRecord{}, ctx.Err()
}

func TestUserLookupTimeoutBoundsSlowProvider(t *testing.T) {
	mr, rdb := newTestRedis(t)
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	cfg := testConfig()
	cfg.Store.UserLookupTimeout = 20 * time.Millisecond
	engine, err := New().
		WithConfig(cfg).
		WithStore(kv.NewRedis(rdb)).
		WithUserProvider(blockingUserProvider{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	start := time.Now()
	_, err = engine.Login(clientCtx(), testIdentifier, testPassword)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("lookup was not bounded: %v", elapsed)
	}
}

func TestRefreshStoreUnavailableIsNotRevocation(t *testing.T) {
	engine, mr := newTestEngine(t, testConfig())
	ctx := clientCtx()

	login, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	mr.Close()

	_, err = engine.Refresh(ctx, login.Pair.RefreshToken)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrExpiredOrRevoked) || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("store fault must not look like a rejection: %v", err)
	}

	if _, err := engine.Login(ctx, testIdentifier, testPassword); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected login to fail closed, got %v", err)
	}
}

func TestRefreshRejectsWrongClass(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := clientCtx()

	login, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, login.Pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for access credential, got %v", err)
	}
	if _, err := engine.ValidateAccess(ctx, login.Pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for renewal credential, got %v", err)
	}
	if _, err := engine.ValidateAccess(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for empty credential, got %v", err)
	}
	if _, err := engine.Logout(ctx, "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on logout, got %v", err)
	}
}

func TestExactlyOnceRotationSingleWinner(t *testing.T) {
	cfg := testConfig()
	cfg.Revocation.ExactlyOnceRotation = true
	engine, _ := newTestEngine(t, cfg)
	ctx := clientCtx()

	login, err := engine.Login(ctx, testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Refresh(context.Background(), login.Pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrExpiredOrRevoked) {
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}

	ids, err := engine.ListCredentials(ctx, "u1")
	if err != nil {
		t.Fatalf("ListCredentials failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one live credential, got %d", len(ids))
	}
}

func TestRefreshSurvivesCallerCancellation(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	login, err := engine.Login(clientCtx(), testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pair, err := engine.Refresh(ctx, login.Pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh with cancelled context failed: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("successor should be usable: %v", err)
	}
}

func TestRevokeAllScopedToPrincipal(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := clientCtx()

	for i := 0; i < 3; i++ {
		if _, err := engine.Login(ctx, testIdentifier, testPassword); err != nil {
			t.Fatalf("login %d failed: %v", i, err)
		}
	}

	n, err := engine.RevokeAll(ctx, "u1")
	if err != nil {
		t.Fatalf("RevokeAll failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revoked, got %d", n)
	}

	n, err = engine.RevokeAll(ctx, "u1")
	if err != nil || n != 0 {
		t.Fatalf("second RevokeAll: n=%d err=%v", n, err)
	}

	if _, err := engine.RevokeAll(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty principal, got %v", err)
	}
}

func TestMemoryBackendBuild(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "memory"

	engine, err := New().
		WithConfig(cfg).
		WithUserProvider(newTestUserProvider(t)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer func() { _ = engine.Close() }()

	if err := engine.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	login, err := engine.Login(clientCtx(), testIdentifier, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), login.Pair.RefreshToken); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
}

func TestBuildRejectsMissingSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.RefreshSecret = nil

	_, err := New().WithConfig(cfg).WithUserProvider(newTestUserProvider(t)).Build()
	if err == nil || !strings.Contains(err.Error(), "JWT_REFRESH_SECRET") {
		t.Fatalf("expected missing refresh secret error, got %v", err)
	}

	cfg = testConfig()
	cfg.Store.Backend = "memory"
	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected error without user provider")
	}

	b := New().WithConfig(cfg).WithUserProvider(newTestUserProvider(t))
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer func() { _ = engine.Close() }()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected builder reuse to fail")
	}
}

func TestZeroEngineNotReady(t *testing.T) {
	var e Engine
	if _, err := e.Login(context.Background(), "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Refresh(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestCookieSessions(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Enabled = true
	cfg.Session.Secret = []byte("cookie-secret")
	engine, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	cookie, sess, err := engine.CreateSession(ctx, Principal{ID: "u1", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if !strings.HasPrefix(cookie, "s:"+sess.SessionID+".") {
		t.Fatalf("unexpected cookie value %q", cookie)
	}

	loaded, err := engine.LoadSession(ctx, cookie)
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if loaded.UserID != "u1" || loaded.DisplayName != "Alice" {
		t.Fatalf("unexpected session: %+v", loaded)
	}

	if _, err := engine.LoadSession(ctx, cookie+"x"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for tampered cookie, got %v", err)
	}

	if err := engine.DestroySession(ctx, cookie); err != nil {
		t.Fatalf("DestroySession failed: %v", err)
	}
	if _, err := engine.LoadSession(ctx, cookie); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after destroy, got %v", err)
	}
}
