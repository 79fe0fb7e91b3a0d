package authguard

import (
	"context"
	"time"

	internalflows "github.com/MrEthical07/authguard/internal/flows"
	"github.com/MrEthical07/authguard/internal/token"
)

// RequestPasswordReset sends a single-use reset token to the account behind
// identifier. Unknown identifiers succeed without sending anything. A
// delivery failure returns [ErrDeliveryFailed]; the token stays valid until
// it expires.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	err := internalflows.RunRequestPasswordReset(ctx, identifier, e.passwordResetFlowDeps())
	e.recordOffence(ctx, clientIPFromContext(ctx), err)
	return err
}

// ConfirmPasswordReset redeems a reset token exactly once and stores the
// hash of newPassword through the [UserProvider]. A reused token is
// [ErrTokenInvalid]. When hashing or the provider update fails the token is
// released and stays redeemable until it expires.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	err := internalflows.RunConfirmPasswordReset(ctx, resetToken, newPassword, e.passwordResetFlowDeps())
	e.recordOffence(ctx, clientIPFromContext(ctx), err)
	return err
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	cfg := e.config.PasswordReset

	return internalflows.PasswordResetDeps{
		Enabled:           cfg.Enabled,
		TokenTTL:          cfg.TokenTTL,
		MinPasswordLength: cfg.MinPasswordLength,
		Purpose:           PurposePasswordReset,
		Guard:             e.flowGuard(),
		Now:               e.now,
		CheckRequestLimiter: func(ctx context.Context, identifier, ip string) error {
			return e.mapRateError("password_reset_request_limit", e.resetLimiter.CheckRequest(ctx, identifier, ip))
		},
		CheckConfirmLimiter: func(ctx context.Context, ip string) error {
			return e.mapRateError("password_reset_confirm_limit", e.resetLimiter.CheckConfirm(ctx, ip))
		},
		GetUserByIdentifier: e.contactByIdentifier,
		UpdatePasswordHash:  e.updatePasswordHash,
		HashPassword:        e.hashPassword,
		IssueToken: func(subject string, ttl time.Duration) (string, internalflows.TokenClaims, error) {
			return e.issueToken(subject, token.PurposePasswordReset, ttl)
		},
		ParseToken: func(tok string) (internalflows.TokenClaims, error) {
			return e.parseToken(tok, token.PurposePasswordReset)
		},
		MarkConsumed:          e.markConsumed,
		ReleaseConsumed:       e.releaseConsumed,
		Deliver:               e.deliver,
		SleepEnumerationDelay: sleepEnumerationDelay,
		MetricInc:             e.metricIncInt,
		EmitAudit:             e.emitAudit,
		Metrics: internalflows.PasswordResetMetrics{
			PasswordResetRequest:         int(MetricPasswordResetRequest),
			PasswordResetDeliveryFailure: int(MetricPasswordResetDeliveryFailure),
			PasswordResetConfirmSuccess:  int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure:  int(MetricPasswordResetConfirmFailure),
			PasswordResetReplay:          int(MetricPasswordResetReplay),
		},
		Events: internalflows.PasswordResetEvents{
			PasswordResetRequest: auditEventPasswordResetRequest,
			PasswordResetConfirm: auditEventPasswordResetConfirm,
			PasswordResetReplay:  auditEventPasswordResetReplay,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady:  ErrEngineNotReady,
			FeatureDisabled: ErrFeatureDisabled,
			InvalidArgument: ErrInvalidArgument,
			TokenInvalid:    ErrTokenInvalid,
			PasswordPolicy:  ErrPasswordPolicy,
			DeliveryFailed:  ErrDeliveryFailed,
			UserNotFound:    ErrUserNotFound,
		},
	}
}
