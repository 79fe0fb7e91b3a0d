package limiters

import "context"

type TwoFactorConfig struct {
	IssuePerUser   Window
	AttemptPerUser Window
}

type TwoFactorLimiter struct {
	counter Counter
	config  TwoFactorConfig
}

func NewTwoFactorLimiter(counter Counter, cfg TwoFactorConfig) *TwoFactorLimiter {
	return &TwoFactorLimiter{
		counter: counter,
		config:  cfg,
	}
}

func (l *TwoFactorLimiter) CheckIssue(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	return check(ctx, l.counter, l.config.IssuePerUser, "tfi:"+userID)
}

// CheckAttempt counts one verification attempt, successful or not.
func (l *TwoFactorLimiter) CheckAttempt(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	return check(ctx, l.counter, l.config.AttemptPerUser, "tfa:"+userID)
}

func (l *TwoFactorLimiter) ResetAttempts(ctx context.Context, userID string) error {
	if l == nil || !l.config.AttemptPerUser.enabled() {
		return nil
	}
	return l.counter.ClearKey(ctx, "tfa:"+userID)
}
