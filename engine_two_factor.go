package authguard

import (
	"context"
	"time"

	"github.com/MrEthical07/authguard/internal"
	internalflows "github.com/MrEthical07/authguard/internal/flows"
	"github.com/MrEthical07/authguard/internal/stores"
	"go.uber.org/zap"
)

// EnableTwoFactor selects method as the user's two-factor channel. The user
// must have a destination for it.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID string, method TwoFactorMethod) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return internalflows.RunEnableTwoFactor(ctx, userID, string(method), e.twoFactorFlowDeps())
}

// DisableTwoFactor removes the method and any outstanding challenge. It
// returns [ErrTwoFactorNotEnabled] when nothing was enabled.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return internalflows.RunDisableTwoFactor(ctx, userID, e.twoFactorFlowDeps())
}

// TwoFactorMethod returns the user's method or [ErrTwoFactorNotEnabled].
func (e *Engine) TwoFactorMethod(ctx context.Context, userID string) (TwoFactorMethod, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	method, err := internalflows.RunTwoFactorMethod(ctx, userID, e.twoFactorFlowDeps())
	return TwoFactorMethod(method), err
}

// IssueTwoFactorChallenge delivers a fresh numeric code to the user's
// two-factor destination. Only its salted hash is stored.
func (e *Engine) IssueTwoFactorChallenge(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	err := internalflows.RunIssueTwoFactorChallenge(ctx, userID, e.twoFactorFlowDeps())
	e.recordOffence(ctx, clientIPFromContext(ctx), err)
	return err
}

// VerifyTwoFactor checks code against the outstanding challenge and consumes
// it on success. A missing or expired challenge is [ErrTokenExpired]; a wrong
// code is [ErrTwoFactorInvalid]. Attempts beyond TwoFactor.MaxAttempts per
// window are [ErrRateLimitExceeded].
func (e *Engine) VerifyTwoFactor(ctx context.Context, userID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	err := internalflows.RunVerifyTwoFactor(ctx, userID, code, e.twoFactorFlowDeps())
	e.recordOffence(ctx, clientIPFromContext(ctx), err)
	return err
}

func (e *Engine) twoFactorFlowDeps() internalflows.TwoFactorDeps {
	cfg := e.config.TwoFactor

	return internalflows.TwoFactorDeps{
		Enabled:    cfg.Enabled,
		CodeDigits: cfg.CodeDigits,
		CodeTTL:    cfg.CodeTTL,
		Purpose:    PurposeTwoFactorCode,
		Guard:      e.flowGuard(),
		Now:        e.now,
		ValidMethod: func(m string) bool {
			return TwoFactorMethod(m).valid()
		},
		GetUserByID: e.contactByID,
		SetMethod: func(ctx context.Context, userID, method string) error {
			return e.mapRecordError("set_two_factor_method", e.methods.Set(ctx, userID, method))
		},
		GetMethod: func(ctx context.Context, userID string) (string, error) {
			method, err := e.methods.Get(ctx, userID)
			return method, e.mapRecordError("get_two_factor_method", err)
		},
		DeleteMethod: func(ctx context.Context, userID string) (bool, error) {
			existed, err := e.methods.Delete(ctx, userID)
			return existed, e.mapRecordError("delete_two_factor_method", err)
		},
		CheckIssueLimiter: func(ctx context.Context, userID string) error {
			return e.mapRateError("two_factor_issue_limit", e.twoFactorLimiter.CheckIssue(ctx, userID))
		},
		CheckAttemptLimiter: func(ctx context.Context, userID string) error {
			return e.mapRateError("two_factor_attempt_limit", e.twoFactorLimiter.CheckAttempt(ctx, userID))
		},
		ResetAttempts: func(ctx context.Context, userID string) error {
			return e.twoFactorLimiter.ResetAttempts(ctx, userID)
		},
		GenerateCode: internal.NewNumericCode,
		Hash:         e.Hash,
		CompareHash:  e.CompareHash,
		SaveChallenge: func(ctx context.Context, userID string, c internalflows.TwoFactorChallenge, ttl time.Duration) error {
			return e.mapRecordError("save_two_factor_challenge", e.challenges.Save(ctx, userID, &stores.Challenge{
				CodeHash:  c.CodeHash,
				Method:    c.Method,
				ExpiresAt: c.ExpiresAt.Unix(),
			}, ttl))
		},
		GetChallenge: func(ctx context.Context, userID string) (internalflows.TwoFactorChallenge, error) {
			c, err := e.challenges.Get(ctx, userID, e.now())
			if err != nil {
				return internalflows.TwoFactorChallenge{}, e.mapRecordError("get_two_factor_challenge", err)
			}
			return internalflows.TwoFactorChallenge{
				CodeHash:  c.CodeHash,
				Method:    c.Method,
				ExpiresAt: time.Unix(c.ExpiresAt, 0),
			}, nil
		},
		ConsumeChallenge: func(ctx context.Context, userID string) error {
			return e.mapRecordError("consume_two_factor_challenge", e.challenges.Consume(ctx, userID))
		},
		Deliver: e.deliver,
		LogWarn: func(msg string, err error) {
			e.logger().Warn(msg, zap.Error(err))
		},
		MetricInc: e.metricIncInt,
		EmitAudit: e.emitAudit,
		Metrics: internalflows.TwoFactorMetrics{
			TwoFactorIssued:           int(MetricTwoFactorIssued),
			TwoFactorSuccess:          int(MetricTwoFactorSuccess),
			TwoFactorFailure:          int(MetricTwoFactorFailure),
			TwoFactorAttemptsExceeded: int(MetricTwoFactorAttemptsExceeded),
		},
		Events: internalflows.TwoFactorEvents{
			TwoFactorEnabled:  auditEventTwoFactorEnabled,
			TwoFactorDisabled: auditEventTwoFactorDisabled,
			TwoFactorIssued:   auditEventTwoFactorIssued,
			TwoFactorVerify:   auditEventTwoFactorVerify,
		},
		Errors: internalflows.TwoFactorErrors{
			EngineNotReady:      ErrEngineNotReady,
			FeatureDisabled:     ErrFeatureDisabled,
			InvalidArgument:     ErrInvalidArgument,
			NotEnabled:          ErrTwoFactorNotEnabled,
			TwoFactorInvalid:    ErrTwoFactorInvalid,
			TokenExpired:        ErrTokenExpired,
			RateLimited:         ErrRateLimitExceeded,
			DeliveryFailed:      ErrDeliveryFailed,
			ChallengeNotFound:   stores.ErrNotFound,
			MethodNotConfigured: stores.ErrNotFound,
		},
	}
}
