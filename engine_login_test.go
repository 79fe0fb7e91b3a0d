package authguard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authguard/throttle"
)

func TestAssessLoginEscalatesThenSettles(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	first, err := h.engine.AssessLogin(ctx, "u1", testAttrs)
	if err != nil {
		t.Fatalf("AssessLogin failed: %v", err)
	}
	if !first.NewDevice || !first.UnusualLocation || !first.RequireTwoFactor {
		t.Fatalf("first login must escalate, got %+v", first)
	}

	fp, err := h.engine.RecordLoginSuccess(ctx, "u1", testAttrs)
	if err != nil {
		t.Fatalf("RecordLoginSuccess failed: %v", err)
	}
	if fp != first.Fingerprint {
		t.Fatal("recorded fingerprint must match the assessed one")
	}

	second, err := h.engine.AssessLogin(ctx, "u1", testAttrs)
	if err != nil {
		t.Fatal(err)
	}
	if second.NewDevice || second.UnusualLocation || second.RequireTwoFactor {
		t.Fatalf("known device and ip must not escalate, got %+v", second)
	}

	moved := testAttrs
	moved.IP = "192.0.2.44"
	third, err := h.engine.AssessLogin(ctx, "u1", moved)
	if err != nil {
		t.Fatal(err)
	}
	if !third.UnusualLocation || !third.RequireTwoFactor {
		t.Fatalf("new ip must escalate, got %+v", third)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginStepUp] != 2 || snap.Counters[MetricDeviceRegistered] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestAssessLoginReportsTrust(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	fp, err := h.engine.RecordLoginSuccess(ctx, "u1", testAttrs)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.engine.TrustDevice(ctx, "u1", fp); err != nil {
		t.Fatal(err)
	}

	got, err := h.engine.AssessLogin(ctx, "u1", testAttrs)
	if err != nil {
		t.Fatal(err)
	}
	if !got.TrustedDevice || got.RequireTwoFactor {
		t.Fatalf("expected trusted device without step-up, got %+v", got)
	}
}

func TestAssessLoginBlockedIP(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.BlockIP(ctx, testAttrs.IP, "abuse", time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := h.engine.AssessLogin(ctx, "u1", testAttrs); !errors.Is(err, ErrIPBlocked) {
		t.Fatalf("expected ErrIPBlocked, got %v", err)
	}
}

func TestAssessLoginThrottled(t *testing.T) {
	h := newTestHarness(t, func(_ *Config, b *Builder) {
		b.WithThrottlePolicies(map[string]throttle.Policy{
			LoginOperation: {TTL: time.Minute, Limit: 2},
		})
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := h.engine.AssessLogin(ctx, "u1", testAttrs); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if _, err := h.engine.AssessLogin(ctx, "u2", testAttrs); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("login throttle is keyed by ip, expected ErrRateLimitExceeded, got %v", err)
	}
}

func TestAssessLoginUsesContextIP(t *testing.T) {
	h := newTestHarness(t, nil)

	attrs := testAttrs
	attrs.IP = ""
	ctx := withIP("203.0.113.5")
	if _, err := h.engine.RecordLoginSuccess(ctx, "u1", attrs); err != nil {
		t.Fatal(err)
	}
	unusual, err := h.engine.IsUnusualLocation(context.Background(), "u1", "203.0.113.5")
	if err != nil || unusual {
		t.Fatalf("context ip must be remembered, unusual=%v err=%v", unusual, err)
	}
}
