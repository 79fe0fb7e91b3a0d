package authguard

import (
	"context"
	"errors"
	"time"
)

// CheckLimit counts one request against key in the fixed window aligned to
// window and returns [ErrRateLimitExceeded] once the count passes limit.
// A limit of zero or less rejects every request.
func (e *Engine) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) error {
	if e == nil || e.limiter == nil {
		return ErrEngineNotReady
	}
	if key == "" {
		return ErrInvalidArgument
	}
	err := e.limiter.CheckLimit(ctx, key, limit, window)
	if err != nil {
		err = e.mapRateError("check_limit", err)
		if errors.Is(err, ErrRateLimitExceeded) {
			e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", err, nil)
		}
	}
	return err
}

// ClearKey resets the counter for key immediately.
func (e *Engine) ClearKey(ctx context.Context, key string) error {
	if e == nil || e.limiter == nil {
		return ErrEngineNotReady
	}
	if key == "" {
		return ErrInvalidArgument
	}
	return e.mapRateError("clear_key", e.limiter.ClearKey(ctx, key))
}
