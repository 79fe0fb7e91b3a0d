package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authguard/internal/rate"
)

// AutoBlockConfig trips a block once one address collects Threshold
// offences within Window. A zero Threshold or Window disables counting.
type AutoBlockConfig struct {
	Threshold int
	Window    time.Duration
}

// AutoBlocker counts offences per client IP: rate-limit rejections, failed
// token redemptions and wrong two-factor codes. It only decides; blocking
// the address is the caller's job.
type AutoBlocker struct {
	counter Counter
	config  AutoBlockConfig
}

func NewAutoBlocker(counter Counter, cfg AutoBlockConfig) *AutoBlocker {
	return &AutoBlocker{counter: counter, config: cfg}
}

func (l *AutoBlocker) enabled() bool {
	return l != nil && l.config.Threshold > 0 && l.config.Window > 0
}

func autoBlockKey(ip string) string {
	return "abk:" + ipKey(ip)
}

// RecordOffence counts one offence from ip and reports whether this one
// reached the threshold. A tripped counter is cleared so the address starts
// from zero once its block ends.
func (l *AutoBlocker) RecordOffence(ctx context.Context, ip string) (bool, error) {
	if !l.enabled() || ip == "" {
		return false, nil
	}

	key := autoBlockKey(ip)
	// limit Threshold-1 rejects exactly the Threshold-th offence
	err := l.counter.CheckLimit(ctx, key, l.config.Threshold-1, l.config.Window)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, rate.ErrRateLimited):
		return true, l.counter.ClearKey(ctx, key)
	default:
		return false, err
	}
}

// Reset forgets the offences counted for ip, e.g. after a manual unblock.
func (l *AutoBlocker) Reset(ctx context.Context, ip string) error {
	if !l.enabled() || ip == "" {
		return nil
	}
	return l.counter.ClearKey(ctx, autoBlockKey(ip))
}
