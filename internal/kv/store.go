package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("kv: key not found")
	// ErrUnavailable wraps any backend failure.
	ErrUnavailable = errors.New("kv: store unavailable")
)

// Store is the narrow key-value contract used by the security core.
//
// A zero ttl means the key does not expire.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// IncrementWindow increments the counter stored at key for the window
	// starting at windowStart and returns the post-increment count. A counter
	// recorded for a different window is discarded first.
	IncrementWindow(ctx context.Context, key string, windowStart int64, ttl time.Duration) (int64, error)
}
