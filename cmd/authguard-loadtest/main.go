package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authguard"
	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	var (
		keys        = flag.Int("keys", 1000, "number of distinct rate-limit keys")
		hitsPerKey  = flag.Int("hits", 50, "checks per key in the exactness phase")
		limit       = flag.Int("limit", 10, "admitted requests per key and window")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations in the denylist and crypto phases")
		rps         = flag.Float64("rps", 0, "offered load for the denylist phase; 0 is unpaced")
		useRedis    = flag.Bool("redis", false, "dial AUTHGUARD_STORE_REDIS_ADDR instead of an embedded miniredis")
	)
	flag.Parse()

	if *keys <= 0 || *hitsPerKey <= 0 || *limit <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "keys, hits, limit, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger, *keys, *hitsPerKey, *limit, *concurrency, *ops, *rps, *useRedis); err != nil {
		logger.Error("loadtest failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, keys, hitsPerKey, limit, concurrency, ops int, rps float64, useRedis bool) error {
	_ = godotenv.Load()

	if os.Getenv(authguard.EnvPrefix+"ENCRYPTION_SECRET") == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
		_ = os.Setenv(authguard.EnvPrefix+"ENCRYPTION_SECRET", hex.EncodeToString(secret))
	}
	cfg, err := authguard.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	cfg.PasswordReset.Enabled = false
	cfg.TwoFactor.Enabled = false
	cfg.Verification.Enabled = false
	cfg.Metrics.Enabled = true

	var client redis.UniversalClient
	if useRedis {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Store.RedisAddr},
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		logger.Info("using redis", zap.String("addr", cfg.Store.RedisAddr))
	} else {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Info("using miniredis", zap.String("addr", mr.Addr()))
	}
	defer func() { _ = client.Close() }()

	engine, err := authguard.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := context.Background()
	runID := time.Now().UnixNano()

	exact, err := runExactnessPhase(ctx, engine, runID, keys, hitsPerKey, limit, concurrency)
	if err != nil {
		return err
	}
	denylist, err := runDenylistPhase(ctx, engine, ops, concurrency, rps)
	if err != nil {
		return err
	}
	crypto, err := runCryptoPhase(engine, ops, concurrency)
	if err != nil {
		return err
	}

	fmt.Println("---- results ----")
	fmt.Printf("exactness: keys=%d hits/key=%d limit=%d admitted=%d expected=%d violations=%d\n",
		keys, hitsPerKey, limit, exact.admitted, exact.expected, exact.violations)
	printStats("rate-limit", exact.stats)
	printStats("denylist", denylist)
	printStats("seal+open", crypto)

	if exact.violations > 0 {
		return fmt.Errorf("%d keys admitted more or fewer than the limit", exact.violations)
	}
	return nil
}

type exactnessResult struct {
	admitted   int64
	expected   int64
	violations int
	stats      phaseStats
}

// runExactnessPhase hammers every key concurrently inside one window and
// checks each admitted exactly min(hits, limit) requests.
func runExactnessPhase(ctx context.Context, engine *authguard.Engine, runID int64, keys, hits, limit, concurrency int) (exactnessResult, error) {
	admitted := make([]atomic.Int64, keys)
	rec := newRecorder(keys * hits)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	start := time.Now()
	for k := 0; k < keys; k++ {
		key := fmt.Sprintf("loadtest:%d:%d", runID, k)
		for h := 0; h < hits; h++ {
			g.Go(func() error {
				t0 := time.Now()
				err := engine.CheckLimit(gctx, key, limit, time.Hour)
				rec.add(time.Since(t0), err != nil && !errors.Is(err, authguard.ErrRateLimitExceeded))
				switch {
				case err == nil:
					admitted[k].Add(1)
				case errors.Is(err, authguard.ErrRateLimitExceeded):
				default:
					return err
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return exactnessResult{}, err
	}

	want := int64(min(hits, limit))
	res := exactnessResult{stats: rec.stats(time.Since(start))}
	for k := range admitted {
		got := admitted[k].Load()
		res.admitted += got
		res.expected += want
		if got != want {
			res.violations++
		}
	}
	return res, nil
}

// runDenylistPhase blocks a tenth of a /24 and checks addresses across it,
// optionally paced to rps.
func runDenylistPhase(ctx context.Context, engine *authguard.Engine, ops, concurrency int, rps float64) (phaseStats, error) {
	for i := 0; i < 256; i += 10 {
		if _, err := engine.BlockIP(ctx, fmt.Sprintf("198.51.100.%d", i), "loadtest", time.Hour); err != nil {
			return phaseStats{}, err
		}
	}

	pacer := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		pacer = rate.NewLimiter(rate.Limit(rps), concurrency)
	}

	var (
		cursor atomic.Int64
		rec    = newRecorder(ops)
	)
	g, gctx := errgroup.WithContext(ctx)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1)) - 1
				if i >= ops {
					return nil
				}
				if err := pacer.Wait(gctx); err != nil {
					return err
				}
				ip := fmt.Sprintf("198.51.100.%d", i%256)
				t0 := time.Now()
				err := engine.CheckIP(gctx, ip)
				rec.add(time.Since(t0), err != nil && !errors.Is(err, authguard.ErrIPBlocked))
				if (i%256)%10 == 0 && !errors.Is(err, authguard.ErrIPBlocked) {
					return fmt.Errorf("expected %s to be blocked, got %v", ip, err)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return rec.stats(time.Since(start)), nil
}

func runCryptoPhase(engine *authguard.Engine, ops, concurrency int) (phaseStats, error) {
	var (
		cursor atomic.Int64
		rec    = newRecorder(ops)
	)
	var g errgroup.Group

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1)) - 1
				if i >= ops {
					return nil
				}
				plaintext := fmt.Sprintf("payload-%d", i)
				t0 := time.Now()
				sealed, err := engine.Encrypt(plaintext)
				if err == nil {
					var opened string
					opened, err = engine.Decrypt(sealed)
					if err == nil && opened != plaintext {
						err = fmt.Errorf("round trip mismatch at %d", i)
					}
				}
				rec.add(time.Since(t0), err != nil)
				if err != nil {
					return err
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return rec.stats(time.Since(start)), nil
}

type recorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	failures  int64
}

func newRecorder(capacity int) *recorder {
	return &recorder{latencies: make([]time.Duration, 0, capacity)}
}

func (r *recorder) add(d time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies = append(r.latencies, d)
	if failed {
		r.failures++
	}
}

func (r *recorder) stats(total time.Duration) phaseStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return computeStats(total, r.latencies, r.failures)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
