package authguard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestVerificationEmailRoundTrip(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	if err := h.engine.IssueVerificationToken(ctx, "u1", PurposeVerifyEmail); err != nil {
		t.Fatalf("IssueVerificationToken failed: %v", err)
	}
	msg := h.delivery.last(t)
	if msg.Purpose != PurposeVerifyEmail || msg.Method != TwoFactorEmail || msg.Destination != testAlice.Email {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !msg.ExpiresAt.Equal(h.clock.Now().Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", msg.ExpiresAt)
	}

	userID, err := h.engine.ConfirmVerificationToken(ctx, msg.Payload, PurposeVerifyEmail)
	if err != nil {
		t.Fatalf("ConfirmVerificationToken failed: %v", err)
	}
	if userID != "u1" {
		t.Fatalf("expected u1, got %q", userID)
	}

	if _, err := h.engine.ConfirmVerificationToken(ctx, msg.Payload, PurposeVerifyEmail); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected reuse to fail with ErrTokenInvalid, got %v", err)
	}
	if got := h.engine.MetricsSnapshot().Counters[MetricVerificationSuccess]; got != 1 {
		t.Fatalf("expected 1 verification success, got %d", got)
	}
}

func TestVerificationPhoneUsesSMS(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	if err := h.engine.IssueVerificationToken(ctx, "u1", PurposeVerifyPhone); err != nil {
		t.Fatal(err)
	}
	msg := h.delivery.last(t)
	if msg.Method != TwoFactorSMS || msg.Destination != testAlice.Phone {
		t.Fatalf("unexpected message %+v", msg)
	}

	if _, err := h.engine.ConfirmVerificationToken(ctx, msg.Payload, PurposeVerifyEmail); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("a phone token must not verify email, got %v", err)
	}
	if _, err := h.engine.ConfirmVerificationToken(ctx, msg.Payload, PurposeVerifyPhone); err != nil {
		t.Fatalf("expected phone confirmation, got %v", err)
	}
}

func TestVerificationExpiry(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := context.Background()

	if err := h.engine.IssueVerificationToken(ctx, "u1", PurposeVerifyEmail); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(24 * time.Hour)

	if _, err := h.engine.ConfirmVerificationToken(ctx, h.delivery.last(t).Payload, PurposeVerifyEmail); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerificationRejectsBadInput(t *testing.T) {
	h := newTestHarness(t, nil)
	h.users.users["u2"] = UserRecord{UserID: "u2", Identifier: "bob", Email: "bob@example.com"}
	ctx := context.Background()

	if err := h.engine.IssueVerificationToken(ctx, "u1", "verify_pager"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown purpose, got %v", err)
	}
	if err := h.engine.IssueVerificationToken(ctx, "", PurposeVerifyEmail); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty user, got %v", err)
	}
	if err := h.engine.IssueVerificationToken(ctx, "u2", PurposeVerifyPhone); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument without a phone, got %v", err)
	}
	if _, err := h.engine.ConfirmVerificationToken(ctx, "", PurposeVerifyEmail); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := h.engine.ConfirmVerificationToken(ctx, "not-a-token", PurposeVerifyEmail); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if h.delivery.count() != 0 {
		t.Fatalf("expected no deliveries, got %d", h.delivery.count())
	}
}

func TestVerificationRequestLimitPerSubject(t *testing.T) {
	h := newTestHarness(t, func(cfg *Config, _ *Builder) {
		cfg.Verification.RequestPerSubject = WindowConfig{Limit: 2, Period: time.Hour}
	})
	ctx := withIP("198.51.100.7")

	for i := 0; i < 2; i++ {
		if err := h.engine.IssueVerificationToken(ctx, "u1", PurposeVerifyEmail); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}
	err := h.engine.IssueVerificationToken(ctx, "u1", PurposeVerifyEmail)
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if !errors.Is(PublicError(err), ErrRequestDenied) {
		t.Fatalf("expected public denial, got %v", PublicError(err))
	}

	// the phone budget is separate
	if err := h.engine.IssueVerificationToken(ctx, "u1", PurposeVerifyPhone); err != nil {
		t.Fatalf("expected phone request to pass, got %v", err)
	}
}

func TestVerificationBlockedIP(t *testing.T) {
	h := newTestHarness(t, nil)
	ctx := withIP("203.0.113.9")

	if _, err := h.engine.BlockIP(context.Background(), "203.0.113.9", "abuse", 0); err != nil {
		t.Fatal(err)
	}
	if err := h.engine.IssueVerificationToken(ctx, "u1", PurposeVerifyEmail); !errors.Is(err, ErrIPBlocked) {
		t.Fatalf("expected ErrIPBlocked, got %v", err)
	}
	if h.delivery.count() != 0 {
		t.Fatal("a blocked request must not deliver anything")
	}
}

func TestVerificationDisabled(t *testing.T) {
	h := newTestHarness(t, func(cfg *Config, _ *Builder) {
		cfg.Verification.Enabled = false
	})
	ctx := context.Background()

	if err := h.engine.IssueVerificationToken(ctx, "u1", PurposeVerifyEmail); !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("expected ErrFeatureDisabled, got %v", err)
	}
	if _, err := h.engine.ConfirmVerificationToken(ctx, "x", PurposeVerifyEmail); !errors.Is(err, ErrFeatureDisabled) {
		t.Fatalf("expected ErrFeatureDisabled, got %v", err)
	}
}

func TestVerificationConfirmWithoutIPIsRateLimited(t *testing.T) {
	h := newTestHarness(t, func(cfg *Config, _ *Builder) {
		cfg.Verification.ConfirmPerIP = WindowConfig{Limit: 3, Period: time.Hour}
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.engine.ConfirmVerificationToken(ctx, "not-a-token", PurposeVerifyEmail); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("attempt %d: expected ErrTokenInvalid, got %v", i+1, err)
		}
	}
	if _, err := h.engine.ConfirmVerificationToken(ctx, "not-a-token", PurposeVerifyEmail); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
}
