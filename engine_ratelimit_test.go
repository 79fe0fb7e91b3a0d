package authguard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authguard/throttle"
)

func TestCheckLimitExactness(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := h.engine.CheckLimit(ctx, "k", 5, time.Minute); err != nil {
			t.Fatalf("call %d: expected admit, got %v", i+1, err)
		}
	}
	if err := h.engine.CheckLimit(ctx, "k", 5, time.Minute); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("call 6: expected ErrRateLimitExceeded, got %v", err)
	}

	h.clock.Advance(time.Minute)
	if err := h.engine.CheckLimit(ctx, "k", 5, time.Minute); err != nil {
		t.Fatalf("expected admit in the next window, got %v", err)
	}

	if got := h.engine.MetricsSnapshot().Counters[MetricRateLimitHit]; got != 1 {
		t.Fatalf("expected 1 rate limit hit, got %d", got)
	}
}

func TestCheckLimitConcurrentExactlyN(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	const callers = 50
	const limit = 10

	var admitted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			if err := h.engine.CheckLimit(ctx, "burst", limit, time.Minute); err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != limit {
		t.Fatalf("expected exactly %d admitted, got %d", limit, admitted.Load())
	}
}

func TestClearKeyResetsBudget(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	_ = h.engine.CheckLimit(ctx, "k", 1, time.Minute)
	if err := h.engine.CheckLimit(ctx, "k", 1, time.Minute); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected limit, got %v", err)
	}
	if err := h.engine.ClearKey(ctx, "k"); err != nil {
		t.Fatalf("ClearKey failed: %v", err)
	}
	if err := h.engine.CheckLimit(ctx, "k", 1, time.Minute); err != nil {
		t.Fatalf("expected admit after ClearKey, got %v", err)
	}
}

func TestCheckLimitArguments(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	if err := h.engine.CheckLimit(ctx, "k", 0, time.Minute); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("limit 0 must reject, got %v", err)
	}
	if err := h.engine.CheckLimit(ctx, "k", 5, 500*time.Millisecond); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("sub-second window must be rejected, got %v", err)
	}
	if err := h.engine.CheckLimit(ctx, "k", 5, 1500*time.Millisecond); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("fractional-second window must be rejected, got %v", err)
	}
	if err := h.engine.CheckLimit(ctx, "", 5, time.Minute); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty key must be rejected, got %v", err)
	}
}

func TestCheckLimitFailsClosed(t *testing.T) {
	h := newTestHarness(t, nil)
	h.mr.Close()

	err := h.engine.CheckLimit(context.Background(), "k", 5, time.Minute)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricStoreUnavailable]; got == 0 {
		t.Fatal("expected store failure to be counted")
	}
}

func TestCheckThrottle(t *testing.T) {
	h := newTestHarness(t, func(cfg *Config, b *Builder) {
		cfg.RateLimit.DefaultLimit = 3
		cfg.RateLimit.DefaultTTL = time.Minute
		b.WithThrottlePolicies(map[string]throttle.Policy{
			"password_reset.request": {TTL: time.Hour, Limit: 2},
			"health":                 {Skip: true},
		})
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := h.engine.CheckThrottle(ctx, "password_reset.request", "203.0.113.5")
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if d.Key != "password_reset.request:203.0.113.5" || d.Limit != 2 || d.Remaining != 1-i {
			t.Fatalf("unexpected decision %+v", d)
		}
	}
	d, err := h.engine.CheckThrottle(ctx, "password_reset.request", "203.0.113.5")
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if d.Remaining != 0 || !d.ResetAt.After(h.clock.Now()) {
		t.Fatalf("expected retry hint on rejection, got %+v", d)
	}

	for i := 0; i < 10; i++ {
		d, err := h.engine.CheckThrottle(ctx, "health", "x")
		if err != nil || !d.Skipped {
			t.Fatalf("skip policy must always admit, got %+v %v", d, err)
		}
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricThrottleSkipped]; got != 10 {
		t.Fatalf("expected 10 skipped checks, got %d", got)
	}

	for i := 0; i < 3; i++ {
		if _, err := h.engine.CheckThrottle(ctx, "unregistered", "id"); err != nil {
			t.Fatalf("default policy call %d: %v", i+1, err)
		}
	}
	d, err = h.engine.CheckThrottle(ctx, "unregistered", "id")
	if !errors.Is(err, ErrRateLimitExceeded) || d.Key != "unregistered:id" {
		t.Fatalf("expected default policy to limit on unregistered:id, got %+v %v", d, err)
	}

	if ops := h.engine.ThrottledOperations(); len(ops) != 2 || ops[0] != "health" {
		t.Fatalf("unexpected operations %v", ops)
	}
}

func TestBuildRejectsInvalidThrottlePolicy(t *testing.T) {
	_, rdb := newTestRedis(t)
	_, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserProvider(newMockUserProvider()).
		WithDeliveryChannel(&captureDelivery{}).
		WithThrottlePolicies(map[string]throttle.Policy{"login": {TTL: 1500 * time.Millisecond, Limit: 1}}).
		Build()
	if !errors.Is(err, throttle.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}
