package flows

import (
	"context"
	"errors"
	"time"
)

// TwoFactorChallenge is a stored one-time code. CodeHash is the salted hash
// of the code, never the code itself.
type TwoFactorChallenge struct {
	CodeHash  string
	Method    string
	ExpiresAt time.Time
}

type TwoFactorMetrics struct {
	TwoFactorIssued           int
	TwoFactorSuccess          int
	TwoFactorFailure          int
	TwoFactorAttemptsExceeded int
}

type TwoFactorEvents struct {
	TwoFactorEnabled  string
	TwoFactorDisabled string
	TwoFactorIssued   string
	TwoFactorVerify   string
}

type TwoFactorErrors struct {
	EngineNotReady      error
	FeatureDisabled     error
	InvalidArgument     error
	NotEnabled          error
	TwoFactorInvalid    error
	TokenExpired        error
	RateLimited         error
	DeliveryFailed      error
	ChallengeNotFound   error
	MethodNotConfigured error
}

type TwoFactorDeps struct {
	Enabled    bool
	CodeDigits int
	CodeTTL    time.Duration
	Purpose    string

	Guard Guard
	Now   func() time.Time

	ValidMethod func(string) bool
	GetUserByID func(ctx context.Context, userID string) (Contact, error)

	SetMethod    func(ctx context.Context, userID, method string) error
	GetMethod    func(ctx context.Context, userID string) (string, error)
	DeleteMethod func(ctx context.Context, userID string) (bool, error)

	CheckIssueLimiter   func(ctx context.Context, userID string) error
	CheckAttemptLimiter func(ctx context.Context, userID string) error
	ResetAttempts       func(ctx context.Context, userID string) error

	GenerateCode func(digits int) (string, error)
	Hash         func(string) (string, error)
	CompareHash  func(data, encoded string) bool

	SaveChallenge    func(ctx context.Context, userID string, c TwoFactorChallenge, ttl time.Duration) error
	GetChallenge     func(ctx context.Context, userID string) (TwoFactorChallenge, error)
	ConsumeChallenge func(ctx context.Context, userID string) error

	Deliver func(ctx context.Context, d Delivery) error

	LogWarn func(msg string, err error)

	MetricInc func(int)
	EmitAudit EmitAuditFunc

	Metrics TwoFactorMetrics
	Events  TwoFactorEvents
	Errors  TwoFactorErrors
}

func normalizeTwoFactorDeps(deps *TwoFactorDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.LogWarn == nil {
		deps.LogWarn = func(string, error) {}
	}
	if deps.ValidMethod == nil {
		deps.ValidMethod = func(m string) bool { return m == "email" || m == "sms" }
	}
}

// RunEnableTwoFactor stores method as the user's two-factor channel. The user
// must have a destination for it.
func RunEnableTwoFactor(ctx context.Context, userID, method string, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)

	if !deps.Enabled {
		return deps.Errors.FeatureDisabled
	}
	if deps.GetUserByID == nil || deps.SetMethod == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" || !deps.ValidMethod(method) {
		deps.EmitAudit(ctx, deps.Events.TwoFactorEnabled, false, userID, deps.Errors.InvalidArgument, nil)
		return deps.Errors.InvalidArgument
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorEnabled, false, userID, err, nil)
		return err
	}
	if contactFor(user, method) == "" {
		deps.EmitAudit(ctx, deps.Events.TwoFactorEnabled, false, userID, deps.Errors.InvalidArgument, func() map[string]string {
			return map[string]string{
				"method": method,
				"reason": "no_destination",
			}
		})
		return deps.Errors.InvalidArgument
	}

	if err := deps.SetMethod(ctx, userID, method); err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorEnabled, false, userID, err, nil)
		return err
	}

	deps.EmitAudit(ctx, deps.Events.TwoFactorEnabled, true, userID, nil, func() map[string]string {
		return map[string]string{
			"method": method,
		}
	})
	return nil
}

// RunDisableTwoFactor removes the user's method and any outstanding challenge.
func RunDisableTwoFactor(ctx context.Context, userID string, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)

	if deps.DeleteMethod == nil || deps.ConsumeChallenge == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" {
		return deps.Errors.InvalidArgument
	}

	existed, err := deps.DeleteMethod(ctx, userID)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorDisabled, false, userID, err, nil)
		return err
	}
	if !existed {
		return deps.Errors.NotEnabled
	}
	if err := deps.ConsumeChallenge(ctx, userID); err != nil && !errors.Is(err, deps.Errors.ChallengeNotFound) {
		deps.EmitAudit(ctx, deps.Events.TwoFactorDisabled, false, userID, err, nil)
		return err
	}

	deps.EmitAudit(ctx, deps.Events.TwoFactorDisabled, true, userID, nil, nil)
	return nil
}

// RunTwoFactorMethod returns the enabled method, or NotEnabled.
func RunTwoFactorMethod(ctx context.Context, userID string, deps TwoFactorDeps) (string, error) {
	normalizeTwoFactorDeps(&deps)

	if deps.GetMethod == nil {
		return "", deps.Errors.EngineNotReady
	}
	if userID == "" {
		return "", deps.Errors.InvalidArgument
	}

	method, err := deps.GetMethod(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.MethodNotConfigured) {
			return "", deps.Errors.NotEnabled
		}
		return "", err
	}
	return method, nil
}

// RunIssueTwoFactorChallenge generates a fresh code, stores its hash and
// delivers the code. A new challenge replaces any outstanding one.
func RunIssueTwoFactorChallenge(ctx context.Context, userID string, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)

	if !deps.Enabled {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, userID, deps.Errors.FeatureDisabled, nil)
		return deps.Errors.FeatureDisabled
	}
	if deps.CheckIssueLimiter == nil ||
		deps.GetMethod == nil ||
		deps.GetUserByID == nil ||
		deps.GenerateCode == nil ||
		deps.Hash == nil ||
		deps.SaveChallenge == nil ||
		deps.Deliver == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, "", deps.Errors.InvalidArgument, nil)
		return deps.Errors.InvalidArgument
	}

	ip := deps.Guard.clientIP(ctx)
	if err := deps.Guard.checkIP(ctx, ip); err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, userID, err, nil)
		return err
	}
	if err := deps.CheckIssueLimiter(ctx, userID); err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, userID, err, nil)
		return err
	}

	method, err := RunTwoFactorMethod(ctx, userID, deps)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, userID, err, nil)
		return err
	}
	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, userID, err, nil)
		return err
	}
	destination := contactFor(user, method)
	if destination == "" {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, userID, deps.Errors.NotEnabled, func() map[string]string {
			return map[string]string{
				"method": method,
				"reason": "no_destination",
			}
		})
		return deps.Errors.NotEnabled
	}

	code, err := deps.GenerateCode(deps.CodeDigits)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, userID, err, nil)
		return err
	}
	codeHash, err := deps.Hash(code)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, userID, err, nil)
		return err
	}

	expiresAt := deps.Now().Add(deps.CodeTTL)
	if err := deps.SaveChallenge(ctx, userID, TwoFactorChallenge{
		CodeHash:  codeHash,
		Method:    method,
		ExpiresAt: expiresAt,
	}, deps.CodeTTL); err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, userID, err, nil)
		return err
	}
	deps.MetricInc(deps.Metrics.TwoFactorIssued)

	if err := deps.Deliver(ctx, Delivery{
		Purpose:     deps.Purpose,
		Method:      method,
		UserID:      userID,
		Destination: destination,
		Payload:     code,
		ExpiresAt:   expiresAt,
	}); err != nil {
		deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, false, userID, deps.Errors.DeliveryFailed, func() map[string]string {
			return map[string]string{
				"method": method,
			}
		})
		return deps.Errors.DeliveryFailed
	}

	deps.EmitAudit(ctx, deps.Events.TwoFactorIssued, true, userID, nil, func() map[string]string {
		return map[string]string{
			"method": method,
		}
	})
	return nil
}

// RunVerifyTwoFactor checks code against the outstanding challenge and
// consumes it. Every attempt is charged to the per-user attempt budget.
func RunVerifyTwoFactor(ctx context.Context, userID, code string, deps TwoFactorDeps) error {
	normalizeTwoFactorDeps(&deps)

	if !deps.Enabled {
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFactorVerify, false, userID, deps.Errors.FeatureDisabled, nil)
		return deps.Errors.FeatureDisabled
	}
	if deps.CheckAttemptLimiter == nil ||
		deps.GetChallenge == nil ||
		deps.ConsumeChallenge == nil ||
		deps.CompareHash == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" {
		deps.EmitAudit(ctx, deps.Events.TwoFactorVerify, false, "", deps.Errors.InvalidArgument, nil)
		return deps.Errors.InvalidArgument
	}

	ip := deps.Guard.clientIP(ctx)
	if err := deps.Guard.checkIP(ctx, ip); err != nil {
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFactorVerify, false, userID, err, nil)
		return err
	}
	if err := deps.CheckAttemptLimiter(ctx, userID); err != nil {
		if errors.Is(err, deps.Errors.RateLimited) {
			deps.MetricInc(deps.Metrics.TwoFactorAttemptsExceeded)
		}
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFactorVerify, false, userID, err, nil)
		return err
	}

	if code == "" {
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFactorVerify, false, userID, deps.Errors.TwoFactorInvalid, func() map[string]string {
			return map[string]string{
				"reason": "empty_code",
			}
		})
		return deps.Errors.TwoFactorInvalid
	}

	challenge, err := deps.GetChallenge(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.ChallengeNotFound) {
			err = deps.Errors.TokenExpired
		}
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFactorVerify, false, userID, err, nil)
		return err
	}

	if !deps.CompareHash(code, challenge.CodeHash) {
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFactorVerify, false, userID, deps.Errors.TwoFactorInvalid, func() map[string]string {
			return map[string]string{
				"method": challenge.Method,
			}
		})
		return deps.Errors.TwoFactorInvalid
	}

	// Only the caller that removes the challenge wins. A concurrent
	// verification of the same code sees it already gone.
	if err := deps.ConsumeChallenge(ctx, userID); err != nil {
		if errors.Is(err, deps.Errors.ChallengeNotFound) {
			err = deps.Errors.TokenExpired
		}
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFactorVerify, false, userID, err, func() map[string]string {
			return map[string]string{
				"reason": "already_consumed",
			}
		})
		return err
	}

	if deps.ResetAttempts != nil {
		if err := deps.ResetAttempts(ctx, userID); err != nil {
			deps.LogWarn("two-factor attempt counter not cleared", err)
		}
	}

	deps.MetricInc(deps.Metrics.TwoFactorSuccess)
	deps.EmitAudit(ctx, deps.Events.TwoFactorVerify, true, userID, nil, func() map[string]string {
		return map[string]string{
			"method": challenge.Method,
		}
	})
	return nil
}

func contactFor(c Contact, method string) string {
	switch method {
	case "email":
		return c.Email
	case "sms":
		return c.Phone
	default:
		return ""
	}
}
