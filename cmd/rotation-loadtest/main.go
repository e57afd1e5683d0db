package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	sessionjwt "github.com/rkhaya/express-session-jwt"
	"github.com/rkhaya/express-session-jwt/kv"
	"github.com/rkhaya/express-session-jwt/password"
	"github.com/rkhaya/express-session-jwt/users"
)

const loadPassword = "load-test-password"

type principalState struct {
	id      string
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		principals  = flag.Int("principals", 1000, "number of principals to log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (validate + rotate)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		strategy    = flag.String("strategy", "scan", "revoke-all strategy: scan or indexed")
		exactlyOnce = flag.Bool("exactly-once", false, "enable exactly-once rotation")
	)
	flag.Parse()

	if *principals <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "principals, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := buildEngine(kv.NewRedis(client), *principals, *strategy, *exactlyOnce)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	fmt.Printf("logging in %d principals...\n", *principals)
	startSeed := time.Now()
	states, err := seed(ctx, engine, *principals, *concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		token := st.access
		st.mu.Unlock()
		_, err := engine.ValidateAccess(ctx, token)
		return err
	})
	rotateStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		defer st.mu.Unlock()
		pair, err := engine.Refresh(ctx, st.refresh)
		if err != nil {
			return err
		}
		st.access, st.refresh = pair.AccessToken, pair.RefreshToken
		return nil
	})

	t0 := time.Now()
	revoked := 0
	for i := range states {
		n, err := engine.RevokeAll(ctx, states[i].id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "revoke-all %s: %v\n", states[i].id, err)
			continue
		}
		revoked += n
	}
	revokeTotal := time.Since(t0)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("rotate", rotateStats)
	fmt.Printf("revoke-all: principals=%d markers=%d total=%s strategy=%s\n",
		len(states), revoked, revokeTotal.Round(time.Millisecond), *strategy)
}

func buildEngine(store kv.Store, principals int, strategy string, exactlyOnce bool) (*sessionjwt.Engine, error) {
	pcfg := password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hasher, err := password.NewArgon2(pcfg)
	if err != nil {
		return nil, err
	}
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		return nil, err
	}

	dir := users.NewMemory()
	for i := 0; i < principals; i++ {
		err := dir.Add(sessionjwt.UserRecord{
			UserID:       fmt.Sprintf("u%d", i),
			Identifier:   fmt.Sprintf("user%d@load.test", i),
			PasswordHash: hash,
		})
		if err != nil {
			return nil, err
		}
	}

	cfg := sessionjwt.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("load-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("load-refresh-secret-0123456789abcde")
	cfg.Password = sessionjwt.PasswordConfig(pcfg)
	cfg.Revocation.Strategy = strategy
	cfg.Revocation.ExactlyOnceRotation = exactlyOnce
	cfg.RateLimit.Enabled = false

	return sessionjwt.New().
		WithConfig(cfg).
		WithStore(store).
		WithUserProvider(dir).
		WithMetricsEnabled(false).
		Build()
}

func seed(ctx context.Context, engine *sessionjwt.Engine, n, concurrency int) ([]principalState, error) {
	states := make([]principalState, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			res, err := engine.Login(gctx, fmt.Sprintf("user%d@load.test", i), loadPassword)
			if err != nil {
				return fmt.Errorf("login user%d: %w", i, err)
			}
			states[i].id = res.Principal.ID
			states[i].access = res.Pair.AccessToken
			states[i].refresh = res.Pair.RefreshToken
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}

// runPhase executes ops calls of fn across concurrency workers.
func runPhase(ops, concurrency int, seedMul int64, fn func(r *rand.Rand) error) phaseStats {
	var (
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
		g         errgroup.Group
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		w := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*seedMul))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return nil
				}
				t0 := time.Now()
				err := fn(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					if errors.Is(err, sessionjwt.ErrStoreUnavailable) {
						fmt.Fprintf(os.Stderr, "store fault: %v\n", err)
					}
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	_ = g.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
