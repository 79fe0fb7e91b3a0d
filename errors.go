package authguard

import "errors"

var (
	// ErrRateLimitExceeded is returned when a fixed-window budget is spent.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrIPBlocked is returned when the client IP has an active denylist entry.
	ErrIPBlocked = errors.New("ip blocked")
	// ErrDecryption is returned for any envelope that fails to open.
	ErrDecryption = errors.New("decryption failed")
	// ErrTokenExpired is returned for a well-formed token or challenge past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for a malformed, foreign, mismatched or reused token.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrDeviceNotRegistered is returned by device lookups for unknown pairs.
	// Login assessment treats it as a step-up signal, never as a rejection.
	ErrDeviceNotRegistered = errors.New("device not registered")
	// ErrStoreUnavailable is returned when the key-value backend fails. Every
	// check fails closed with it.
	ErrStoreUnavailable = errors.New("security store unavailable")
	// ErrTwoFactorInvalid is returned for a wrong two-factor code.
	ErrTwoFactorInvalid = errors.New("two-factor code invalid")
	// ErrTwoFactorNotEnabled is returned when the user has no two-factor method.
	ErrTwoFactorNotEnabled = errors.New("two-factor not enabled")
	// ErrDeliveryFailed is returned when the delivery channel rejects a message.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrPasswordPolicy is returned when a new password fails the policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidArgument is returned for malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrFeatureDisabled is returned by flows switched off in [Config].
	ErrFeatureDisabled = errors.New("feature disabled")
	// ErrUserNotFound is returned by [UserProvider] implementations for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrEngineNotReady is returned by a nil or partially built engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrRequestDenied is the only denial callers should show to clients.
	// See [PublicError].
	ErrRequestDenied = errors.New("request denied")
)

// PublicError collapses every defence decision into [ErrRequestDenied] so a
// client cannot learn which control fired. Infrastructure failures and
// programmer errors pass through unchanged.
func PublicError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRateLimitExceeded),
		errors.Is(err, ErrIPBlocked),
		errors.Is(err, ErrDecryption),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTwoFactorInvalid),
		errors.Is(err, ErrTwoFactorNotEnabled):
		return ErrRequestDenied
	default:
		return err
	}
}
