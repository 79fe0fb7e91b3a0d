package authguard

import (
	"context"
	"time"

	internalflows "github.com/MrEthical07/authguard/internal/flows"
)

// IssueVerificationToken sends a single-use verification token to the user's
// email (purpose [PurposeVerifyEmail]) or phone ([PurposeVerifyPhone]).
func (e *Engine) IssueVerificationToken(ctx context.Context, userID, purpose string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	err := internalflows.RunIssueVerificationToken(ctx, userID, purpose, e.verificationFlowDeps())
	e.recordOffence(ctx, clientIPFromContext(ctx), err)
	return err
}

// ConfirmVerificationToken redeems a verification token once and returns the
// user id it was issued to.
func (e *Engine) ConfirmVerificationToken(ctx context.Context, verificationToken, purpose string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	userID, err := internalflows.RunConfirmVerificationToken(ctx, verificationToken, purpose, e.verificationFlowDeps())
	e.recordOffence(ctx, clientIPFromContext(ctx), err)
	return userID, err
}

func (e *Engine) verificationFlowDeps() internalflows.VerificationDeps {
	cfg := e.config.Verification

	return internalflows.VerificationDeps{
		Enabled:      cfg.Enabled,
		TokenTTL:     cfg.TokenTTL,
		EmailPurpose: PurposeVerifyEmail,
		PhonePurpose: PurposeVerifyPhone,
		Guard:        e.flowGuard(),
		Now:          e.now,
		CheckRequestLimiter: func(ctx context.Context, purpose, subject, ip string) error {
			return e.mapRateError("verification_request_limit", e.verificationLimiter.CheckRequest(ctx, purpose, subject, ip))
		},
		CheckConfirmLimiter: func(ctx context.Context, ip string) error {
			return e.mapRateError("verification_confirm_limit", e.verificationLimiter.CheckConfirm(ctx, ip))
		},
		GetUserByID: e.contactByID,
		IssueToken: func(subject, purpose string, ttl time.Duration) (string, internalflows.TokenClaims, error) {
			return e.issueToken(subject, purpose, ttl)
		},
		ParseToken:   e.parseToken,
		MarkConsumed: e.markConsumed,
		Deliver:      e.deliver,
		MetricInc:    e.metricIncInt,
		EmitAudit:    e.emitAudit,
		Metrics: internalflows.VerificationMetrics{
			VerificationRequest: int(MetricVerificationRequest),
			VerificationSuccess: int(MetricVerificationSuccess),
			VerificationFailure: int(MetricVerificationFailure),
		},
		Events: internalflows.VerificationEvents{
			VerificationRequest: auditEventVerificationRequest,
			VerificationConfirm: auditEventVerificationConfirm,
		},
		Errors: internalflows.VerificationErrors{
			EngineNotReady:  ErrEngineNotReady,
			FeatureDisabled: ErrFeatureDisabled,
			InvalidArgument: ErrInvalidArgument,
			TokenInvalid:    ErrTokenInvalid,
			DeliveryFailed:  ErrDeliveryFailed,
		},
	}
}
