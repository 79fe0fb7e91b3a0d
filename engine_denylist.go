package authguard

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authguard/internal/denylist"
	"go.uber.org/zap"
)

// CheckIP returns [ErrIPBlocked] when ip has an active denylist entry. Entries
// past their expiry are removed on the way.
func (e *Engine) CheckIP(ctx context.Context, ip string) error {
	if e == nil || e.denylist == nil {
		return ErrEngineNotReady
	}
	if ip == "" {
		return ErrInvalidArgument
	}
	err := e.mapDenylistError("check_ip", e.denylist.CheckIP(ctx, ip))
	if errors.Is(err, ErrIPBlocked) {
		e.metricInc(MetricIPBlocked)
		e.emitAudit(ctx, auditEventIPBlocked, false, "", err, nil)
	}
	return err
}

// checkClientIP is the flow guard: an absent client IP is not checked.
func (e *Engine) checkClientIP(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}
	return e.CheckIP(ctx, ip)
}

// BlockIP denies ip for duration, or permanently when duration is zero. An
// existing entry for the same address is replaced.
func (e *Engine) BlockIP(ctx context.Context, ip, reason string, duration time.Duration) (*BlockEntry, error) {
	if e == nil || e.denylist == nil {
		return nil, ErrEngineNotReady
	}
	entry, err := e.denylist.BlockIP(ctx, ip, reason, duration)
	if err != nil {
		return nil, e.mapDenylistError("block_ip", err)
	}

	e.metricInc(MetricIPBlockAdded)
	e.logger().Info("ip blocked",
		ipField(entry.IP),
		zap.String("reason", reason),
		zap.Bool("permanent", entry.Permanent()),
	)
	e.emitAudit(ctx, auditEventIPBlockAdded, true, "", nil, func() map[string]string {
		return map[string]string{
			"blocked_ip": maskIP(entry.IP),
			"reason":     reason,
			"duration":   duration.String(),
		}
	})
	return entry, nil
}

// autoBlockReason tags denylist entries added by recordOffence.
const autoBlockReason = "auto: repeated failures"

func isOffence(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTwoFactorInvalid)
}

// recordOffence charges a failed flow result to the client IP and blocks the
// address for Denylist.DefaultBlockDuration once the auto-block threshold is
// reached. It never changes the flow result.
func (e *Engine) recordOffence(ctx context.Context, ip string, err error) {
	if ip == "" || e.autoBlock == nil || !isOffence(err) {
		return
	}
	canonical, cerr := denylist.Canonical(ip)
	if cerr != nil {
		return
	}

	tripped, rerr := e.autoBlock.RecordOffence(ctx, canonical)
	if rerr != nil {
		e.logger().Warn("auto-block counter unavailable", ipField(canonical), zap.Error(rerr))
		return
	}
	if !tripped {
		return
	}

	duration := e.config.Denylist.DefaultBlockDuration
	if _, berr := e.BlockIP(ctx, canonical, autoBlockReason, duration); berr != nil {
		e.logger().Warn("auto-block failed", ipField(canonical), zap.Error(berr))
		return
	}
	e.metricInc(MetricIPAutoBlocked)
	e.logger().Warn("ip auto-blocked",
		ipField(canonical),
		zap.Duration("duration", duration),
	)
}

// UnblockIP removes any entry for ip and reports whether one existed.
func (e *Engine) UnblockIP(ctx context.Context, ip string) (bool, error) {
	if e == nil || e.denylist == nil {
		return false, ErrEngineNotReady
	}
	existed, err := e.denylist.UnblockIP(ctx, ip)
	if err != nil {
		return false, e.mapDenylistError("unblock_ip", err)
	}
	if canonical, cerr := denylist.Canonical(ip); cerr == nil {
		if rerr := e.autoBlock.Reset(ctx, canonical); rerr != nil {
			e.logger().Warn("auto-block counter reset failed", ipField(canonical), zap.Error(rerr))
		}
	}
	if existed {
		e.metricInc(MetricIPUnblocked)
		e.emitAudit(ctx, auditEventIPUnblocked, true, "", nil, func() map[string]string {
			return map[string]string{
				"blocked_ip": maskIP(ip),
			}
		})
	}
	return existed, nil
}

// LookupBlock returns the active entry for ip, or nil when ip is not
// blocked.
func (e *Engine) LookupBlock(ctx context.Context, ip string) (*BlockEntry, error) {
	if e == nil || e.denylist == nil {
		return nil, ErrEngineNotReady
	}
	entry, err := e.denylist.Lookup(ctx, ip)
	if err != nil {
		if errors.Is(err, denylist.ErrNotBlocked) {
			return nil, nil
		}
		return nil, e.mapDenylistError("lookup_block", err)
	}
	return entry, nil
}

// IsUnusualLocation reports whether ip is absent from the addresses
// previously remembered for userID.
func (e *Engine) IsUnusualLocation(ctx context.Context, userID, ip string) (bool, error) {
	if e == nil || e.denylist == nil {
		return false, ErrEngineNotReady
	}
	if userID == "" {
		return false, ErrInvalidArgument
	}
	unusual, err := e.denylist.IsUnusualLocation(ctx, userID, ip)
	if err != nil {
		return false, e.mapDenylistError("is_unusual_location", err)
	}
	return unusual, nil
}

// RememberLocation adds ip to the known addresses of userID.
func (e *Engine) RememberLocation(ctx context.Context, userID, ip string) error {
	if e == nil || e.denylist == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrInvalidArgument
	}
	return e.mapDenylistError("remember_location", e.denylist.RememberLocation(ctx, userID, ip))
}
