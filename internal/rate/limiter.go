package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authguard/internal/kv"
)

const keyPrefix = "rl:"

// Result describes the counter state after one admitted or rejected check.
type Result struct {
	Count     int64
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store enforces fixed-window limits on arbitrary string keys.
type Store struct {
	kv  kv.Store
	now func() time.Time
}

// New creates a rate [Store] on the given key-value backend. now drives window
// boundaries; nil means time.Now.
func New(store kv.Store, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		kv:  store,
		now: now,
	}
}

// CheckLimit increments the counter for key and fails with [ErrRateLimited]
// when the post-increment count exceeds limit.
func (s *Store) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) error {
	_, err := s.Check(ctx, key, limit, window)
	return err
}

// Check behaves like CheckLimit and also reports the counter state, which the
// gating layer can turn into retry hints.
func (s *Store) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if window < time.Second || window%time.Second != 0 {
		return Result{}, ErrInvalidWindow
	}

	now := s.now()
	start, resetAt := windowBounds(now, window)

	count, err := s.kv.IncrementWindow(ctx, keyPrefix+key, start, resetAt.Sub(now))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	res := Result{
		Count:   count,
		Limit:   limit,
		ResetAt: resetAt,
	}
	if remaining := int64(limit) - count; remaining > 0 {
		res.Remaining = int(remaining)
	}
	if count > int64(limit) {
		return res, ErrRateLimited
	}
	return res, nil
}

// ClearKey resets the counter for key to zero regardless of the window.
func (s *Store) ClearKey(ctx context.Context, key string) error {
	if _, err := s.kv.Delete(ctx, keyPrefix+key); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func windowBounds(now time.Time, window time.Duration) (int64, time.Time) {
	seconds := int64(window / time.Second)
	unix := now.Unix()
	start := unix - unix%seconds
	return start, time.Unix(start+seconds, 0)
}
