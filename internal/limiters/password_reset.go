package limiters

import "context"

type PasswordResetConfig struct {
	RequestPerIP         Window
	RequestPerIdentifier Window
	ConfirmPerIP         Window
}

type PasswordResetLimiter struct {
	counter Counter
	config  PasswordResetConfig
}

func NewPasswordResetLimiter(counter Counter, cfg PasswordResetConfig) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		counter: counter,
		config:  cfg,
	}
}

// CheckRequest counts one reset request. The IP budget is charged first so a
// flood from one address cannot exhaust a victim's identifier budget.
func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if ip != "" {
		if err := check(ctx, l.counter, l.config.RequestPerIP, "prr:ip:"+ip); err != nil {
			return err
		}
	}
	return check(ctx, l.counter, l.config.RequestPerIdentifier, "prr:id:"+identifier)
}

// CheckConfirm counts one confirm attempt. Calls without an IP share one
// bucket.
func (l *PasswordResetLimiter) CheckConfirm(ctx context.Context, ip string) error {
	if l == nil {
		return nil
	}
	return check(ctx, l.counter, l.config.ConfirmPerIP, "prc:"+ipKey(ip))
}
