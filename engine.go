package authguard

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authguard/hashing"
	internalaudit "github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/internal/denylist"
	"github.com/MrEthical07/authguard/internal/device"
	"github.com/MrEthical07/authguard/internal/envelope"
	"github.com/MrEthical07/authguard/internal/kv"
	"github.com/MrEthical07/authguard/internal/limiters"
	"github.com/MrEthical07/authguard/internal/rate"
	"github.com/MrEthical07/authguard/internal/stores"
	"github.com/MrEthical07/authguard/internal/token"
	"github.com/MrEthical07/authguard/throttle"
	"go.uber.org/zap"
)

// Engine is the authentication security core. Build one with [New] and
// share it; every method is safe for concurrent use.
type Engine struct {
	config Config
	log    *zap.Logger
	clock  func() time.Time

	store    kv.Store
	sealer   *envelope.Sealer
	hasher   *hashing.Argon2
	limiter  *rate.Store
	denylist *denylist.Denylist
	devices  *device.Registry
	throttle *throttle.Registry
	tokens   *token.Issuer

	consumed   *stores.ConsumedTokenStore
	challenges *stores.ChallengeStore
	methods    *stores.MethodStore

	resetLimiter        *limiters.PasswordResetLimiter
	twoFactorLimiter    *limiters.TwoFactorLimiter
	verificationLimiter *limiters.VerificationLimiter
	autoBlock           *limiters.AutoBlocker

	audit   *internalaudit.Dispatcher
	metrics *Metrics

	userProvider UserProvider
	delivery     DeliveryChannel
}

// Close stops the audit dispatcher after draining buffered events. The
// key-value client is owned by the caller and stays open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	_ = e.logger().Sync()
}

// AuditDropped returns the number of audit events dropped because the
// buffer was full. It reads [MetricAuditDropped], so it stays zero while
// metrics are disabled.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.metrics.Value(MetricAuditDropped)
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.sealer != nil && e.hasher != nil && e.limiter != nil
}

// storeUnavailable logs a backend failure and returns the fail-closed error.
func (e *Engine) storeUnavailable(op string, err error) error {
	e.metricInc(MetricStoreUnavailable)
	e.logger().Warn("security store unavailable",
		zap.String("op", op),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (e *Engine) mapRateError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricRateLimitHit)
		return ErrRateLimitExceeded
	case errors.Is(err, rate.ErrInvalidWindow):
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	default:
		return e.storeUnavailable(op, err)
	}
}

func (e *Engine) mapDenylistError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, denylist.ErrIPBlocked):
		return ErrIPBlocked
	case errors.Is(err, denylist.ErrInvalidIP), errors.Is(err, denylist.ErrInvalidDuration):
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	default:
		return e.storeUnavailable(op, err)
	}
}

func (e *Engine) mapDeviceError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, device.ErrNotRegistered):
		return ErrDeviceNotRegistered
	case errors.Is(err, device.ErrInvalidFingerprint), errors.Is(err, device.ErrInvalidUser):
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	default:
		return e.storeUnavailable(op, err)
	}
}

// mapRecordError keeps stores.ErrNotFound for the flows to interpret.
func (e *Engine) mapRecordError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrNotFound):
		return stores.ErrNotFound
	default:
		return e.storeUnavailable(op, err)
	}
}

func mapTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}
