package internaldefs

import (
	"github.com/MrEthical07/authguard"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   authguard.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   authguard.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: authguard.MetricIPBlocked, Name: "authguard_ip_blocked_total", Help: "Requests rejected by the IP denylist."},
	{ID: authguard.MetricIPBlockAdded, Name: "authguard_ip_block_added_total", Help: "Denylist entries added."},
	{ID: authguard.MetricIPUnblocked, Name: "authguard_ip_unblocked_total", Help: "Denylist entries removed before expiry."},
	{ID: authguard.MetricRateLimitHit, Name: "authguard_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: authguard.MetricThrottleSkipped, Name: "authguard_throttle_skipped_total", Help: "Throttle checks skipped by policy."},
	{ID: authguard.MetricStoreUnavailable, Name: "authguard_store_unavailable_total", Help: "Operations failed closed on a store error."},
	{ID: authguard.MetricDecryptionFailure, Name: "authguard_decryption_failure_total", Help: "Envelopes that failed to open."},
	{ID: authguard.MetricNewDevice, Name: "authguard_new_device_total", Help: "Login assessments from an unknown device."},
	{ID: authguard.MetricUnusualLocation, Name: "authguard_unusual_location_total", Help: "Login assessments from an unknown location."},
	{ID: authguard.MetricDeviceRegistered, Name: "authguard_device_registered_total", Help: "Devices registered for the first time."},
	{ID: authguard.MetricDeviceTrusted, Name: "authguard_device_trusted_total", Help: "Devices marked trusted."},
	{ID: authguard.MetricLoginStepUp, Name: "authguard_login_step_up_total", Help: "Login assessments requiring two-factor."},
	{ID: authguard.MetricPasswordResetRequest, Name: "authguard_password_reset_request_total", Help: "Password reset tokens issued."},
	{ID: authguard.MetricPasswordResetDeliveryFailure, Name: "authguard_password_reset_delivery_failure_total", Help: "Password reset tokens the delivery channel rejected."},
	{ID: authguard.MetricPasswordResetConfirmSuccess, Name: "authguard_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: authguard.MetricPasswordResetConfirmFailure, Name: "authguard_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: authguard.MetricPasswordResetReplay, Name: "authguard_password_reset_replay_total", Help: "Password reset tokens presented after use."},
	{ID: authguard.MetricTwoFactorIssued, Name: "authguard_two_factor_issued_total", Help: "Two-factor challenges issued."},
	{ID: authguard.MetricTwoFactorSuccess, Name: "authguard_two_factor_success_total", Help: "Successful two-factor verifications."},
	{ID: authguard.MetricTwoFactorFailure, Name: "authguard_two_factor_failure_total", Help: "Failed two-factor verifications."},
	{ID: authguard.MetricTwoFactorAttemptsExceeded, Name: "authguard_two_factor_attempts_exceeded_total", Help: "Two-factor verifications rejected by the attempt cap."},
	{ID: authguard.MetricVerificationRequest, Name: "authguard_verification_request_total", Help: "Verification tokens issued."},
	{ID: authguard.MetricVerificationSuccess, Name: "authguard_verification_success_total", Help: "Successful verifications."},
	{ID: authguard.MetricVerificationFailure, Name: "authguard_verification_failure_total", Help: "Failed verifications."},
	{ID: authguard.MetricIPAutoBlocked, Name: "authguard_ip_auto_blocked_total", Help: "Addresses blocked after repeated failures."},
	{ID: authguard.MetricAuditDropped, Name: "authguard_audit_dropped_total", Help: "Audit events dropped on a full dispatcher buffer."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authguard.MetricHashLatency, Name: "authguard_hash_latency_seconds", Help: "Argon2id hashing latency."},
}

// HistogramBounds are the finite bucket upper bounds in seconds. The engine
// keeps one extra overflow bucket.
var HistogramBounds = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// HistogramBoundSuffix names each bucket, overflow included, for exporters
// that flatten a histogram into gauges.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last
// element is the sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
