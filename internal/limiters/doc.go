// Package limiters provides the flow-specific rate limiters built on top of
// the internal/rate store.
//
// # Limiters
//
//   - [PasswordResetLimiter]: per-IP and per-identifier budget for reset
//     requests, per-IP budget for confirmations.
//   - [TwoFactorLimiter]: per-user budgets for challenge issuance and for code
//     attempts. Attempts are cleared after a successful verification.
//   - [VerificationLimiter]: per-IP and per-subject budget for verification
//     link requests, per-IP budget for confirmations.
//   - [AutoBlocker]: per-IP offence counter that reports when an address has
//     earned an automatic denylist entry.
//
// Confirm budgets charge calls without a client IP to one shared bucket.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
// A [Window] with a zero Period is disabled.
//
// # What this package must NOT do
//
//   - Import authguard or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; flow functions decide consequences.
package limiters
