// Package internal contains helpers private to authguard, currently the
// numeric one-time code generator.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - denylist: IP block entries and the known-location history
//   - device: request fingerprints and the per-user device registry
//   - envelope: authenticated encryption envelopes
//   - flows: flow orchestrators behind the Engine operations
//   - kv: the key-value substrate (Redis and in-process)
//   - limiters: flow-specific fixed-window budgets
//   - rate: the fixed-window rate limit store
//   - stores: consumed-token markers and two-factor state
//   - token: sealed single-use security tokens
//
// # What this package must NOT do
//
//   - Export types that appear in the public authguard API.
//   - Be imported by any package outside the authguard module.
package internal
