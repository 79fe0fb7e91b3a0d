package flows

import (
	"context"
	"errors"
	"time"
)

// EmitAuditFunc records one audit event. metadata is only evaluated when the
// event is actually dispatched.
type EmitAuditFunc func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)

// Delivery is one outbound secret handed to the delivery channel.
type Delivery struct {
	Purpose     string
	Method      string
	UserID      string
	Destination string
	Payload     string
	ExpiresAt   time.Time
}

// TokenClaims is the parsed form of a sealed security token.
type TokenClaims struct {
	ID        string
	Subject   string
	ExpiresAt time.Time
}

// Contact is the slice of a user record the flows deliver to.
type Contact struct {
	UserID string
	Email  string
	Phone  string
}

// Guard runs the checks every flow step performs before any cryptographic
// work. Both funcs return already-mapped engine errors.
type Guard struct {
	ClientIPFromContext func(context.Context) string
	CheckIP             func(context.Context, string) error
}

func (g Guard) clientIP(ctx context.Context) string {
	if g.ClientIPFromContext == nil {
		return ""
	}
	return g.ClientIPFromContext(ctx)
}

func (g Guard) checkIP(ctx context.Context, ip string) error {
	if g.CheckIP == nil || ip == "" {
		return nil
	}
	return g.CheckIP(ctx, ip)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func noopAudit(context.Context, string, bool, string, error, func() map[string]string) {}

func noopMetric(int) {}
