package authguard

import (
	"context"

	internalflows "github.com/MrEthical07/authguard/internal/flows"
)

// LoginOperation is the throttle operation id charged by [Engine.AssessLogin].
const LoginOperation = "login"

// AssessLogin gates a login that already passed the credential check on the
// IP denylist and the "login" throttle, then compares the request's device
// and IP with the user's history. An unregistered device or an unfamiliar IP
// sets RequireTwoFactor; neither rejects the login.
//
// The IP is attrs.IP, or the one attached with [WithClientIP].
func (e *Engine) AssessLogin(ctx context.Context, userID string, attrs RequestAttributes) (*LoginAssessment, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	attrs = e.withRequestIP(ctx, attrs)
	signals, err := internalflows.RunAssessLogin(ctx, userID, attrs.IP, e.loginFlowDeps(attrs))
	e.recordOffence(ctx, attrs.IP, err)
	if err != nil {
		return nil, err
	}
	return &LoginAssessment{
		Fingerprint:      signals.Fingerprint,
		NewDevice:        signals.NewDevice,
		TrustedDevice:    signals.TrustedDevice,
		UnusualLocation:  signals.UnusualLocation,
		RequireTwoFactor: signals.RequireTwoFactor,
	}, nil
}

// RecordLoginSuccess registers the request's device and remembers its IP for
// userID. It returns the device fingerprint.
func (e *Engine) RecordLoginSuccess(ctx context.Context, userID string, attrs RequestAttributes) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	attrs = e.withRequestIP(ctx, attrs)
	return internalflows.RunRecordLoginSuccess(ctx, userID, attrs.IP, e.loginFlowDeps(attrs))
}

func (e *Engine) withRequestIP(ctx context.Context, attrs RequestAttributes) RequestAttributes {
	if attrs.IP == "" {
		attrs.IP = clientIPFromContext(ctx)
	}
	return attrs
}

func (e *Engine) loginFlowDeps(attrs RequestAttributes) internalflows.LoginDeps {
	return internalflows.LoginDeps{
		Operation: LoginOperation,
		CheckIP:   e.CheckIP,
		CheckThrottle: func(ctx context.Context, operation, identity string) error {
			_, err := e.CheckThrottle(ctx, operation, identity)
			return err
		},
		Fingerprint: func() string {
			return e.GenerateFingerprint(attrs)
		},
		IsNewDevice:       e.IsNewDevice,
		IsTrusted:         e.isTrustedDevice,
		IsUnusualLocation: e.IsUnusualLocation,
		RegisterDevice: func(ctx context.Context, userID, fp string) error {
			_, err := e.RegisterDevice(ctx, userID, fp)
			return err
		},
		RememberLocation: e.RememberLocation,
		MetricInc:        e.metricIncInt,
		EmitAudit:        e.emitAudit,
		Metrics: internalflows.LoginMetrics{
			NewDevice:       int(MetricNewDevice),
			UnusualLocation: int(MetricUnusualLocation),
			LoginStepUp:     int(MetricLoginStepUp),
		},
		Events: internalflows.LoginEvents{
			LoginAssessed: auditEventLoginAssessed,
			LoginRecorded: auditEventLoginRecorded,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:  ErrEngineNotReady,
			InvalidArgument: ErrInvalidArgument,
			DeviceNotFound:  ErrDeviceNotRegistered,
		},
	}
}
