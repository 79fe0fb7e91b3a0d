package authguard

import (
	"context"

	"github.com/MrEthical07/authguard/internal/device"
)

// GenerateFingerprint derives the 64-character device fingerprint for a
// request. It is deterministic and one-way.
func (e *Engine) GenerateFingerprint(attrs RequestAttributes) string {
	return device.Fingerprint(attrs)
}

// IsNewDevice reports whether fingerprint has never been registered for
// userID.
func (e *Engine) IsNewDevice(ctx context.Context, userID, fingerprint string) (bool, error) {
	if e == nil || e.devices == nil {
		return false, ErrEngineNotReady
	}
	isNew, err := e.devices.IsNewDevice(ctx, userID, fingerprint)
	if err != nil {
		return false, e.mapDeviceError("is_new_device", err)
	}
	return isNew, nil
}

// RegisterDevice records the pair, or refreshes LastSeenAt when it is known.
func (e *Engine) RegisterDevice(ctx context.Context, userID, fingerprint string) (*DeviceRecord, error) {
	if e == nil || e.devices == nil {
		return nil, ErrEngineNotReady
	}
	rec, err := e.devices.RegisterDevice(ctx, userID, fingerprint)
	if err != nil {
		return nil, e.mapDeviceError("register_device", err)
	}
	if rec.FirstSeenAt.Equal(rec.LastSeenAt) {
		e.metricInc(MetricDeviceRegistered)
		e.emitAudit(ctx, auditEventDeviceRegistered, true, userID, nil, nil)
	}
	return rec, nil
}

// Device returns the record for the pair or [ErrDeviceNotRegistered].
func (e *Engine) Device(ctx context.Context, userID, fingerprint string) (*DeviceRecord, error) {
	if e == nil || e.devices == nil {
		return nil, ErrEngineNotReady
	}
	rec, err := e.devices.Get(ctx, userID, fingerprint)
	if err != nil {
		return nil, e.mapDeviceError("get_device", err)
	}
	return rec, nil
}

// TrustDevice marks a registered device as trusted, typically after the
// user passed a two-factor challenge from it.
func (e *Engine) TrustDevice(ctx context.Context, userID, fingerprint string) error {
	if e == nil || e.devices == nil {
		return ErrEngineNotReady
	}
	if err := e.devices.TrustDevice(ctx, userID, fingerprint); err != nil {
		return e.mapDeviceError("trust_device", err)
	}
	e.metricInc(MetricDeviceTrusted)
	e.emitAudit(ctx, auditEventDeviceTrusted, true, userID, nil, nil)
	return nil
}

// RemoveDevice forgets the pair, including its trust, and reports whether it
// was registered.
func (e *Engine) RemoveDevice(ctx context.Context, userID, fingerprint string) (bool, error) {
	if e == nil || e.devices == nil {
		return false, ErrEngineNotReady
	}
	existed, err := e.devices.RemoveDevice(ctx, userID, fingerprint)
	if err != nil {
		return false, e.mapDeviceError("remove_device", err)
	}
	if existed {
		e.emitAudit(ctx, auditEventDeviceRemoved, true, userID, nil, nil)
	}
	return existed, nil
}

func (e *Engine) isTrustedDevice(ctx context.Context, userID, fingerprint string) (bool, error) {
	rec, err := e.Device(ctx, userID, fingerprint)
	if err != nil {
		return false, err
	}
	return rec.Trusted, nil
}
