package authguard

import (
	"context"
	"errors"
)

const (
	auditEventIPBlocked            = "ip_blocked"
	auditEventIPBlockAdded         = "ip_block_added"
	auditEventIPUnblocked          = "ip_unblocked"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
	auditEventDeviceRegistered     = "device_registered"
	auditEventDeviceTrusted        = "device_trusted"
	auditEventDeviceRemoved        = "device_removed"
	auditEventLoginAssessed        = "login_assessed"
	auditEventLoginRecorded        = "login_recorded"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordResetReplay  = "password_reset_replay"
	auditEventTwoFactorEnabled     = "two_factor_enabled"
	auditEventTwoFactorDisabled    = "two_factor_disabled"
	auditEventTwoFactorIssued      = "two_factor_issued"
	auditEventTwoFactorVerify      = "two_factor_verify"
	auditEventVerificationRequest  = "verification_request"
	auditEventVerificationConfirm  = "verification_confirm"
)

// AuditErrorCode is the stable error classification carried in
// [AuditEvent].Error.
type AuditErrorCode string

const (
	auditErrRateLimited      AuditErrorCode = "rate_limited"
	auditErrIPBlocked        AuditErrorCode = "ip_blocked"
	auditErrDecryption       AuditErrorCode = "decryption_failed"
	auditErrTokenExpired     AuditErrorCode = "token_expired"
	auditErrTokenInvalid     AuditErrorCode = "token_invalid"
	auditErrDeviceUnknown    AuditErrorCode = "device_not_registered"
	auditErrTwoFactorInvalid AuditErrorCode = "two_factor_invalid"
	auditErrTwoFactorOff     AuditErrorCode = "two_factor_not_enabled"
	auditErrDeliveryFailed   AuditErrorCode = "delivery_failed"
	auditErrPasswordPolicy   AuditErrorCode = "password_policy"
	auditErrInvalidArgument  AuditErrorCode = "invalid_argument"
	auditErrFeatureDisabled  AuditErrorCode = "feature_disabled"
	auditErrUserNotFound     AuditErrorCode = "user_not_found"
	auditErrUnavailable      AuditErrorCode = "backend_unavailable"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	// the dispatcher masks IP before queueing
	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Decision:  auditDecision(success, err),
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditDecision(success bool, err error) AuditDecision {
	switch {
	case success:
		return AuditDecisionAllow
	case errors.Is(err, ErrRateLimitExceeded), errors.Is(err, ErrIPBlocked):
		return AuditDecisionDeny
	default:
		return AuditDecisionFail
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return auditErrRateLimited
	case errors.Is(err, ErrIPBlocked):
		return auditErrIPBlocked
	case errors.Is(err, ErrDecryption):
		return auditErrDecryption
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrDeviceNotRegistered):
		return auditErrDeviceUnknown
	case errors.Is(err, ErrTwoFactorInvalid):
		return auditErrTwoFactorInvalid
	case errors.Is(err, ErrTwoFactorNotEnabled):
		return auditErrTwoFactorOff
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidArgument):
		return auditErrInvalidArgument
	case errors.Is(err, ErrFeatureDisabled):
		return auditErrFeatureDisabled
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
