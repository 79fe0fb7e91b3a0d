// Package kv defines the key-value substrate shared by the rate limit store,
// the IP denylist, the device registry and the flow stores.
//
// # Atomicity
//
// Every mutation is atomic per key. IncrementWindow folds the window check,
// reset and increment into one step (a Lua script on Redis, a mutex
// in-process) so concurrent callers on the same key are linearizable.
//
// # Failure policy
//
// Backend errors are reported as [ErrUnavailable]. Callers treat them as fatal
// dependency errors and fail closed. Get retries once on a transient network
// timeout; mutations are never retried.
package kv
