// Package rate implements the fixed-window request counter store.
//
// # Window semantics
//
// Time is partitioned into aligned, non-overlapping windows of the requested
// length (windowStart = unix - unix % seconds). Each key holds the start of its
// current window and a count. A check increments and compares in one atomic
// kv step, so no more than limit checks are admitted per key and window even
// when callers race on the window boundary.
//
// Keys are namespaced under "rl:".
//
// # What this package must NOT do
//
//   - Read the counter and write it back in two steps.
//   - Retry the increment after a store failure.
//   - Fail open: store errors surface as [ErrStoreUnavailable].
package rate
