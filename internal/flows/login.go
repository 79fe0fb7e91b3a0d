package flows

import (
	"context"
	"errors"
)

// LoginSignals is the risk verdict for a login that already passed the
// credential check.
type LoginSignals struct {
	Fingerprint      string
	NewDevice        bool
	TrustedDevice    bool
	UnusualLocation  bool
	RequireTwoFactor bool
}

type LoginMetrics struct {
	NewDevice       int
	UnusualLocation int
	LoginStepUp     int
}

type LoginEvents struct {
	LoginAssessed string
	LoginRecorded string
}

type LoginErrors struct {
	EngineNotReady  error
	InvalidArgument error
	DeviceNotFound  error
}

// LoginDeps composes the denylist, throttle and device registry into the
// login risk assessment.
type LoginDeps struct {
	Operation string

	CheckIP       func(ctx context.Context, ip string) error
	CheckThrottle func(ctx context.Context, operation, identity string) error

	Fingerprint       func() string
	IsNewDevice       func(ctx context.Context, userID, fp string) (bool, error)
	IsTrusted         func(ctx context.Context, userID, fp string) (bool, error)
	IsUnusualLocation func(ctx context.Context, userID, ip string) (bool, error)

	RegisterDevice   func(ctx context.Context, userID, fp string) error
	RememberLocation func(ctx context.Context, userID, ip string) error

	MetricInc func(int)
	EmitAudit EmitAuditFunc

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Operation == "" {
		deps.Operation = "login"
	}
}

// RunAssessLogin gates the login on the denylist and throttle, then compares
// the request's device and location with the user's history. A device or
// location the user has not been seen with escalates to two-factor.
func RunAssessLogin(ctx context.Context, userID, ip string, deps LoginDeps) (LoginSignals, error) {
	normalizeLoginDeps(&deps)

	if deps.CheckThrottle == nil || deps.Fingerprint == nil || deps.IsNewDevice == nil || deps.IsUnusualLocation == nil {
		return LoginSignals{}, deps.Errors.EngineNotReady
	}
	if userID == "" {
		return LoginSignals{}, deps.Errors.InvalidArgument
	}

	if ip != "" && deps.CheckIP != nil {
		if err := deps.CheckIP(ctx, ip); err != nil {
			deps.EmitAudit(ctx, deps.Events.LoginAssessed, false, userID, err, nil)
			return LoginSignals{}, err
		}
	}
	identity := ip
	if identity == "" {
		identity = userID
	}
	if err := deps.CheckThrottle(ctx, deps.Operation, identity); err != nil {
		deps.EmitAudit(ctx, deps.Events.LoginAssessed, false, userID, err, nil)
		return LoginSignals{}, err
	}

	signals := LoginSignals{Fingerprint: deps.Fingerprint()}

	isNew, err := deps.IsNewDevice(ctx, userID, signals.Fingerprint)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.LoginAssessed, false, userID, err, nil)
		return LoginSignals{}, err
	}
	signals.NewDevice = isNew
	if !isNew && deps.IsTrusted != nil {
		trusted, err := deps.IsTrusted(ctx, userID, signals.Fingerprint)
		switch {
		case err == nil:
			signals.TrustedDevice = trusted
		case errors.Is(err, deps.Errors.DeviceNotFound):
			// removed between the two reads; treat as new
			signals.NewDevice = true
		default:
			deps.EmitAudit(ctx, deps.Events.LoginAssessed, false, userID, err, nil)
			return LoginSignals{}, err
		}
	}

	if ip != "" {
		unusual, err := deps.IsUnusualLocation(ctx, userID, ip)
		if err != nil {
			deps.EmitAudit(ctx, deps.Events.LoginAssessed, false, userID, err, nil)
			return LoginSignals{}, err
		}
		signals.UnusualLocation = unusual
	}

	if signals.NewDevice {
		deps.MetricInc(deps.Metrics.NewDevice)
	}
	if signals.UnusualLocation {
		deps.MetricInc(deps.Metrics.UnusualLocation)
	}
	signals.RequireTwoFactor = signals.NewDevice || signals.UnusualLocation
	if signals.RequireTwoFactor {
		deps.MetricInc(deps.Metrics.LoginStepUp)
	}

	deps.EmitAudit(ctx, deps.Events.LoginAssessed, true, userID, nil, func() map[string]string {
		return map[string]string{
			"new_device":         boolString(signals.NewDevice),
			"trusted_device":     boolString(signals.TrustedDevice),
			"unusual_location":   boolString(signals.UnusualLocation),
			"require_two_factor": boolString(signals.RequireTwoFactor),
		}
	})
	return signals, nil
}

// RunRecordLoginSuccess adds the device and IP to the user's history after a
// completed login.
func RunRecordLoginSuccess(ctx context.Context, userID, ip string, deps LoginDeps) (string, error) {
	normalizeLoginDeps(&deps)

	if deps.Fingerprint == nil || deps.RegisterDevice == nil || deps.RememberLocation == nil {
		return "", deps.Errors.EngineNotReady
	}
	if userID == "" {
		return "", deps.Errors.InvalidArgument
	}

	fp := deps.Fingerprint()
	if err := deps.RegisterDevice(ctx, userID, fp); err != nil {
		deps.EmitAudit(ctx, deps.Events.LoginRecorded, false, userID, err, nil)
		return "", err
	}

	if ip != "" {
		if err := deps.RememberLocation(ctx, userID, ip); err != nil {
			deps.EmitAudit(ctx, deps.Events.LoginRecorded, false, userID, err, nil)
			return "", err
		}
	}

	deps.EmitAudit(ctx, deps.Events.LoginRecorded, true, userID, nil, nil)
	return fp, nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
