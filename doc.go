// Package authguard is the authentication security core of an account
// backend. It guards login, password-reset and two-factor flows against
// credential stuffing, token theft, distributed brute force and device or
// IP based account takeover.
//
// The engine bundles an authenticated encryption envelope, argon2id hashing,
// a fixed-window rate limit store, an IP denylist, a device fingerprint
// registry and a throttle policy table, all backed by one key-value store
// (Redis in production). Flow methods compose them: every step checks the
// client IP and its rate budget before any cryptographic work.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authguard is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Flow orchestration, stores and encodings live under
// internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Route requests or render responses. Callers map errors with [PublicError].
//   - Deliver email or SMS itself; that is the [DeliveryChannel]'s job.
//
// # Failure model
//
// Every check fails closed: when the store is unavailable the answer is
// [ErrStoreUnavailable], never an approval.
package authguard
