package limiters

import (
	"context"
	"time"
)

// Counter is the fixed-window store the limiters count against.
// *rate.Store satisfies it.
type Counter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) error
	ClearKey(ctx context.Context, key string) error
}

// Window is one fixed-window budget.
type Window struct {
	Limit  int
	Period time.Duration
}

func (w Window) enabled() bool {
	return w.Period > 0
}

func check(ctx context.Context, c Counter, w Window, key string) error {
	if !w.enabled() {
		return nil
	}
	return c.CheckLimit(ctx, key, w.Limit, w.Period)
}

// anonymousIP is the shared bucket for calls that carry no client IP, so a
// caller cannot escape an IP budget by omitting the address.
const anonymousIP = "anon"

func ipKey(ip string) string {
	if ip == "" {
		return anonymousIP
	}
	return "ip:" + ip
}
