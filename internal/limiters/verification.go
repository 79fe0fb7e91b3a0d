package limiters

import "context"

type VerificationConfig struct {
	RequestPerIP      Window
	RequestPerSubject Window
	ConfirmPerIP      Window
}

type VerificationLimiter struct {
	counter Counter
	config  VerificationConfig
}

func NewVerificationLimiter(counter Counter, cfg VerificationConfig) *VerificationLimiter {
	return &VerificationLimiter{
		counter: counter,
		config:  cfg,
	}
}

func (l *VerificationLimiter) CheckRequest(ctx context.Context, purpose, subject, ip string) error {
	if l == nil {
		return nil
	}
	if ip != "" {
		if err := check(ctx, l.counter, l.config.RequestPerIP, "vfr:ip:"+ip); err != nil {
			return err
		}
	}
	return check(ctx, l.counter, l.config.RequestPerSubject, "vfr:"+purpose+":"+subject)
}

func (l *VerificationLimiter) CheckConfirm(ctx context.Context, ip string) error {
	if l == nil {
		return nil
	}
	return check(ctx, l.counter, l.config.ConfirmPerIP, "vfc:"+ipKey(ip))
}
