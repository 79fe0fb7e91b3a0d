package authguard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authguard/throttle"
)

func TestBuildRequiresAStore(t *testing.T) {
	_, err := New().
		WithConfig(testConfig()).
		WithUserProvider(newMockUserProvider()).
		WithDeliveryChannel(&captureDelivery{}).
		Build()
	if err == nil || !strings.Contains(err.Error(), "store") {
		t.Fatalf("expected missing store error, got %v", err)
	}
}

func TestBuildRequiresFlowCollaborators(t *testing.T) {
	_, err := New().WithConfig(testConfig()).WithInMemoryStore().Build()
	if err == nil || !strings.Contains(err.Error(), "user provider") {
		t.Fatalf("expected missing user provider error, got %v", err)
	}

	_, err = New().
		WithConfig(testConfig()).
		WithInMemoryStore().
		WithUserProvider(newMockUserProvider()).
		Build()
	if err == nil || !strings.Contains(err.Error(), "delivery channel") {
		t.Fatalf("expected missing delivery channel error, got %v", err)
	}
}

func TestBuildPrimitivesOnly(t *testing.T) {
	cfg := testConfig()
	cfg.PasswordReset.Enabled = false
	cfg.TwoFactor.Enabled = false
	cfg.Verification.Enabled = false

	engine, err := New().WithConfig(cfg).WithInMemoryStore().Build()
	if err != nil {
		t.Fatalf("expected primitives-only engine, got %v", err)
	}
	defer engine.Close()

	if err := engine.CheckLimit(context.Background(), "k", 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := engine.RequestPasswordReset(context.Background(), "alice"); !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("expected ErrFeatureDisabled, got %v", err)
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	cfg := testConfig()
	cfg.PasswordReset.Enabled = false
	cfg.TwoFactor.Enabled = false
	cfg.Verification.Enabled = false

	b := New().WithConfig(cfg).WithInMemoryStore()
	engine, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestWithThrottlePoliciesCopiesMap(t *testing.T) {
	policies := map[string]throttle.Policy{
		"search": {TTL: time.Minute, Limit: 2, KeyPrefix: "search:"},
	}
	h := newTestHarness(t, func(_ *Config, b *Builder) {
		b.WithThrottlePolicies(policies)
	})
	policies["search"] = throttle.Policy{Skip: true}

	if got := h.engine.ThrottlePolicy("search"); got.Skip || got.Limit != 2 {
		t.Fatalf("expected the registered policy to be unaffected, got %+v", got)
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *Engine
	ctx := context.Background()

	if err := e.CheckLimit(ctx, "k", 1, time.Minute); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.RequestPasswordReset(ctx, "alice"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if err := e.VerifyTwoFactor(ctx, "u1", "123456"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.AuditDropped() != 0 {
		t.Fatal("expected zero drops on a nil engine")
	}
	e.Close()
}
