package flows

import (
	"context"
	"errors"
	"time"
)

type PasswordResetMetrics struct {
	PasswordResetRequest         int
	PasswordResetDeliveryFailure int
	PasswordResetConfirmSuccess  int
	PasswordResetConfirmFailure  int
	PasswordResetReplay          int
}

type PasswordResetEvents struct {
	PasswordResetRequest string
	PasswordResetConfirm string
	PasswordResetReplay  string
}

type PasswordResetErrors struct {
	EngineNotReady  error
	FeatureDisabled error
	InvalidArgument error
	TokenInvalid    error
	PasswordPolicy  error
	DeliveryFailed  error
	UserNotFound    error
}

type PasswordResetDeps struct {
	Enabled           bool
	TokenTTL          time.Duration
	MinPasswordLength int
	Purpose           string

	Guard Guard
	Now   func() time.Time

	CheckRequestLimiter func(ctx context.Context, identifier, ip string) error
	CheckConfirmLimiter func(ctx context.Context, ip string) error

	GetUserByIdentifier func(ctx context.Context, identifier string) (Contact, error)
	UpdatePasswordHash  func(ctx context.Context, userID, hash string) error
	HashPassword        func(string) (string, error)

	IssueToken   func(subject string, ttl time.Duration) (string, TokenClaims, error)
	ParseToken   func(token string) (TokenClaims, error)
	MarkConsumed func(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	// ReleaseConsumed undoes MarkConsumed when the password was not changed.
	ReleaseConsumed func(ctx context.Context, tokenID string) error
	Deliver         func(ctx context.Context, d Delivery) error

	SleepEnumerationDelay func(context.Context) error

	MetricInc func(int)
	EmitAudit EmitAuditFunc

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.SleepEnumerationDelay == nil {
		deps.SleepEnumerationDelay = func(context.Context) error { return nil }
	}
}

// RunRequestPasswordReset mints a reset token for identifier and hands it to
// the delivery channel. Unknown identifiers succeed without sending anything.
func RunRequestPasswordReset(ctx context.Context, identifier string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if !deps.Enabled {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", deps.Errors.FeatureDisabled, nil)
		return deps.Errors.FeatureDisabled
	}
	if deps.CheckRequestLimiter == nil || deps.GetUserByIdentifier == nil || deps.IssueToken == nil || deps.Deliver == nil {
		return deps.Errors.EngineNotReady
	}
	if identifier == "" {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", deps.Errors.InvalidArgument, func() map[string]string {
			return map[string]string{
				"reason": "empty_identifier",
			}
		})
		return deps.Errors.InvalidArgument
	}

	ip := deps.Guard.clientIP(ctx)
	if err := deps.Guard.checkIP(ctx, ip); err != nil {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		return err
	}
	if err := deps.CheckRequestLimiter(ctx, identifier, ip); err != nil {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		return err
	}

	user, err := deps.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if isContextError(err) {
			return err
		}
		if !errors.Is(err, deps.Errors.UserNotFound) {
			deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", err, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
					"reason":     "user_lookup_failed",
				}
			})
			return err
		}
		if sleepErr := deps.SleepEnumerationDelay(ctx); sleepErr != nil {
			return sleepErr
		}
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, "", nil, func() map[string]string {
			return map[string]string{
				"identifier":       identifier,
				"enumeration_safe": "true",
			}
		})
		deps.MetricInc(deps.Metrics.PasswordResetRequest)
		return nil
	}

	method, destination := resetDestination(user)
	if destination == "" {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, user.UserID, nil, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "no_destination",
			}
		})
		deps.MetricInc(deps.Metrics.PasswordResetRequest)
		return nil
	}

	tok, claims, err := deps.IssueToken(user.UserID, deps.TokenTTL)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, user.UserID, err, nil)
		return err
	}
	deps.MetricInc(deps.Metrics.PasswordResetRequest)

	if err := deps.Deliver(ctx, Delivery{
		Purpose:     deps.Purpose,
		Method:      method,
		UserID:      user.UserID,
		Destination: destination,
		Payload:     tok,
		ExpiresAt:   claims.ExpiresAt,
	}); err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetDeliveryFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, user.UserID, deps.Errors.DeliveryFailed, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"method":     method,
			}
		})
		return deps.Errors.DeliveryFailed
	}

	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, user.UserID, nil, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
			"method":     method,
		}
	})
	return nil
}

// RunConfirmPasswordReset redeems a reset token exactly once and stores the
// hash of newPassword.
func RunConfirmPasswordReset(ctx context.Context, tok, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if !deps.Enabled {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, "", deps.Errors.FeatureDisabled, nil)
		return deps.Errors.FeatureDisabled
	}
	if deps.CheckConfirmLimiter == nil ||
		deps.ParseToken == nil ||
		deps.MarkConsumed == nil ||
		deps.HashPassword == nil ||
		deps.UpdatePasswordHash == nil {
		return deps.Errors.EngineNotReady
	}

	ip := deps.Guard.clientIP(ctx)
	if err := deps.Guard.checkIP(ctx, ip); err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, "", err, nil)
		return err
	}
	if err := deps.CheckConfirmLimiter(ctx, ip); err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, "", err, nil)
		return err
	}

	if tok == "" {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, "", deps.Errors.TokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "empty_token",
			}
		})
		return deps.Errors.TokenInvalid
	}

	claims, err := deps.ParseToken(tok)
	if err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, "", err, func() map[string]string {
			return map[string]string{
				"reason": "parse_failed",
			}
		})
		return err
	}

	// The policy check runs before the marker so a rejected password does
	// not burn the token.
	if len(newPassword) < deps.MinPasswordLength {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, claims.Subject, deps.Errors.PasswordPolicy, func() map[string]string {
			return map[string]string{
				"reason": "too_short",
			}
		})
		return deps.Errors.PasswordPolicy
	}

	fresh, err := deps.MarkConsumed(ctx, claims.ID, claims.ExpiresAt.Sub(deps.Now()))
	if err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, claims.Subject, err, nil)
		return err
	}
	if !fresh {
		deps.MetricInc(deps.Metrics.PasswordResetReplay)
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetReplay, false, claims.Subject, deps.Errors.TokenInvalid, func() map[string]string {
			return map[string]string{
				"token_id": claims.ID,
			}
		})
		return deps.Errors.TokenInvalid
	}

	hash, err := deps.HashPassword(newPassword)
	if err == nil {
		err = deps.UpdatePasswordHash(ctx, claims.Subject, hash)
	}
	if err != nil {
		released := releaseToken(ctx, deps, claims.ID)
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, claims.Subject, err, func() map[string]string {
			return map[string]string{
				"reason":         "update_failed",
				"token_released": boolString(released),
			}
		})
		return err
	}

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, claims.Subject, nil, nil)
	return nil
}

// releaseToken makes the token redeemable again after a failed update. The
// release runs detached from ctx so a cancelled request still frees it.
func releaseToken(ctx context.Context, deps PasswordResetDeps, tokenID string) bool {
	if deps.ReleaseConsumed == nil {
		return false
	}
	return deps.ReleaseConsumed(context.WithoutCancel(ctx), tokenID) == nil
}

// resetDestination prefers email and falls back to SMS.
func resetDestination(c Contact) (method, destination string) {
	if c.Email != "" {
		return "email", c.Email
	}
	if c.Phone != "" {
		return "sms", c.Phone
	}
	return "", ""
}
