package authguard

import (
	"context"
	"errors"

	"github.com/MrEthical07/authguard/throttle"
)

// ThrottlePolicy returns the policy enforced for operation: the registered
// one, or the configured default keyed by operation + ":".
func (e *Engine) ThrottlePolicy(operation string) throttle.Policy {
	if e == nil {
		return throttle.Policy{}
	}
	if p, ok := e.throttle.Lookup(operation); ok {
		return p
	}
	return throttle.Policy{
		TTL:       e.config.RateLimit.DefaultTTL,
		Limit:     e.config.RateLimit.DefaultLimit,
		KeyPrefix: operation + ":",
	}
}

// CheckThrottle charges identity against the policy bound to operation. The
// decision is filled in even when the request is rejected so callers can
// return a retry hint.
func (e *Engine) CheckThrottle(ctx context.Context, operation, identity string) (ThrottleDecision, error) {
	if e == nil || e.limiter == nil {
		return ThrottleDecision{}, ErrEngineNotReady
	}
	if operation == "" || identity == "" {
		return ThrottleDecision{}, ErrInvalidArgument
	}

	p := e.ThrottlePolicy(operation)
	decision := ThrottleDecision{
		Operation: operation,
		Key:       throttle.Key(p, identity),
		Limit:     p.Limit,
	}
	if p.Skip {
		e.metricInc(MetricThrottleSkipped)
		decision.Skipped = true
		return decision, nil
	}

	res, err := e.limiter.Check(ctx, decision.Key, p.Limit, p.TTL)
	decision.Remaining = res.Remaining
	decision.ResetAt = res.ResetAt
	if err != nil {
		err = e.mapRateError("check_throttle", err)
		if errors.Is(err, ErrRateLimitExceeded) {
			e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", err, func() map[string]string {
				return map[string]string{
					"operation": operation,
				}
			})
		}
		return decision, err
	}
	return decision, nil
}

// ThrottledOperations lists the operations with a registered policy.
func (e *Engine) ThrottledOperations() []string {
	if e == nil {
		return nil
	}
	return e.throttle.Operations()
}
