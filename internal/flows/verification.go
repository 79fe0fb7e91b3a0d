package flows

import (
	"context"
	"time"
)

type VerificationMetrics struct {
	VerificationRequest int
	VerificationSuccess int
	VerificationFailure int
}

type VerificationEvents struct {
	VerificationRequest string
	VerificationConfirm string
}

type VerificationErrors struct {
	EngineNotReady  error
	FeatureDisabled error
	InvalidArgument error
	TokenInvalid    error
	DeliveryFailed  error
}

// VerificationDeps drives email and phone verification links. Purpose
// strings select both the token purpose and the contact field.
type VerificationDeps struct {
	Enabled  bool
	TokenTTL time.Duration

	EmailPurpose string
	PhonePurpose string

	Guard Guard
	Now   func() time.Time

	CheckRequestLimiter func(ctx context.Context, purpose, subject, ip string) error
	CheckConfirmLimiter func(ctx context.Context, ip string) error

	GetUserByID func(ctx context.Context, userID string) (Contact, error)

	IssueToken   func(subject, purpose string, ttl time.Duration) (string, TokenClaims, error)
	ParseToken   func(token, purpose string) (TokenClaims, error)
	MarkConsumed func(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	Deliver      func(ctx context.Context, d Delivery) error

	MetricInc func(int)
	EmitAudit EmitAuditFunc

	Metrics VerificationMetrics
	Events  VerificationEvents
	Errors  VerificationErrors
}

func normalizeVerificationDeps(deps *VerificationDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}

func (deps VerificationDeps) method(purpose string) (string, bool) {
	switch purpose {
	case deps.EmailPurpose:
		return "email", true
	case deps.PhonePurpose:
		return "sms", true
	default:
		return "", false
	}
}

// RunIssueVerificationToken sends a single-use verification token for the
// user's email or phone.
func RunIssueVerificationToken(ctx context.Context, userID, purpose string, deps VerificationDeps) error {
	normalizeVerificationDeps(&deps)

	if !deps.Enabled {
		deps.EmitAudit(ctx, deps.Events.VerificationRequest, false, userID, deps.Errors.FeatureDisabled, nil)
		return deps.Errors.FeatureDisabled
	}
	if deps.CheckRequestLimiter == nil || deps.GetUserByID == nil || deps.IssueToken == nil || deps.Deliver == nil {
		return deps.Errors.EngineNotReady
	}
	method, ok := deps.method(purpose)
	if userID == "" || !ok {
		deps.EmitAudit(ctx, deps.Events.VerificationRequest, false, userID, deps.Errors.InvalidArgument, nil)
		return deps.Errors.InvalidArgument
	}

	ip := deps.Guard.clientIP(ctx)
	if err := deps.Guard.checkIP(ctx, ip); err != nil {
		deps.EmitAudit(ctx, deps.Events.VerificationRequest, false, userID, err, nil)
		return err
	}
	if err := deps.CheckRequestLimiter(ctx, purpose, userID, ip); err != nil {
		deps.EmitAudit(ctx, deps.Events.VerificationRequest, false, userID, err, func() map[string]string {
			return map[string]string{
				"purpose": purpose,
			}
		})
		return err
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.VerificationRequest, false, userID, err, nil)
		return err
	}
	destination := contactFor(user, method)
	if destination == "" {
		deps.EmitAudit(ctx, deps.Events.VerificationRequest, false, userID, deps.Errors.InvalidArgument, func() map[string]string {
			return map[string]string{
				"purpose": purpose,
				"reason":  "no_destination",
			}
		})
		return deps.Errors.InvalidArgument
	}

	tok, claims, err := deps.IssueToken(userID, purpose, deps.TokenTTL)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.VerificationRequest, false, userID, err, nil)
		return err
	}
	deps.MetricInc(deps.Metrics.VerificationRequest)

	if err := deps.Deliver(ctx, Delivery{
		Purpose:     purpose,
		Method:      method,
		UserID:      userID,
		Destination: destination,
		Payload:     tok,
		ExpiresAt:   claims.ExpiresAt,
	}); err != nil {
		deps.EmitAudit(ctx, deps.Events.VerificationRequest, false, userID, deps.Errors.DeliveryFailed, func() map[string]string {
			return map[string]string{
				"purpose": purpose,
			}
		})
		return deps.Errors.DeliveryFailed
	}

	deps.EmitAudit(ctx, deps.Events.VerificationRequest, true, userID, nil, func() map[string]string {
		return map[string]string{
			"purpose": purpose,
		}
	})
	return nil
}

// RunConfirmVerificationToken redeems a verification token once and returns
// the verified user id.
func RunConfirmVerificationToken(ctx context.Context, tok, purpose string, deps VerificationDeps) (string, error) {
	normalizeVerificationDeps(&deps)

	if !deps.Enabled {
		deps.MetricInc(deps.Metrics.VerificationFailure)
		deps.EmitAudit(ctx, deps.Events.VerificationConfirm, false, "", deps.Errors.FeatureDisabled, nil)
		return "", deps.Errors.FeatureDisabled
	}
	if deps.CheckConfirmLimiter == nil || deps.ParseToken == nil || deps.MarkConsumed == nil {
		return "", deps.Errors.EngineNotReady
	}
	if _, ok := deps.method(purpose); !ok {
		return "", deps.Errors.InvalidArgument
	}

	ip := deps.Guard.clientIP(ctx)
	if err := deps.Guard.checkIP(ctx, ip); err != nil {
		deps.MetricInc(deps.Metrics.VerificationFailure)
		deps.EmitAudit(ctx, deps.Events.VerificationConfirm, false, "", err, nil)
		return "", err
	}
	if err := deps.CheckConfirmLimiter(ctx, ip); err != nil {
		deps.MetricInc(deps.Metrics.VerificationFailure)
		deps.EmitAudit(ctx, deps.Events.VerificationConfirm, false, "", err, nil)
		return "", err
	}

	if tok == "" {
		deps.MetricInc(deps.Metrics.VerificationFailure)
		deps.EmitAudit(ctx, deps.Events.VerificationConfirm, false, "", deps.Errors.TokenInvalid, nil)
		return "", deps.Errors.TokenInvalid
	}

	claims, err := deps.ParseToken(tok, purpose)
	if err != nil {
		deps.MetricInc(deps.Metrics.VerificationFailure)
		deps.EmitAudit(ctx, deps.Events.VerificationConfirm, false, "", err, func() map[string]string {
			return map[string]string{
				"purpose": purpose,
			}
		})
		return "", err
	}

	fresh, err := deps.MarkConsumed(ctx, claims.ID, claims.ExpiresAt.Sub(deps.Now()))
	if err != nil {
		deps.MetricInc(deps.Metrics.VerificationFailure)
		deps.EmitAudit(ctx, deps.Events.VerificationConfirm, false, claims.Subject, err, nil)
		return "", err
	}
	if !fresh {
		deps.MetricInc(deps.Metrics.VerificationFailure)
		deps.EmitAudit(ctx, deps.Events.VerificationConfirm, false, claims.Subject, deps.Errors.TokenInvalid, func() map[string]string {
			return map[string]string{
				"purpose": purpose,
				"reason":  "replay",
			}
		})
		return "", deps.Errors.TokenInvalid
	}

	deps.MetricInc(deps.Metrics.VerificationSuccess)
	deps.EmitAudit(ctx, deps.Events.VerificationConfirm, true, claims.Subject, nil, func() map[string]string {
		return map[string]string{
			"purpose": purpose,
		}
	})
	return claims.Subject, nil
}
