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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config

	redis    redis.UniversalClient
	inMemory bool

	logger       *zap.Logger
	clock        func() time.Time
	userProvider UserProvider
	delivery     DeliveryChannel
	auditSink    AuditSink
	policies     map[string]throttle.Policy

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs every store with client. Keys are namespaced by
// Config.Store.RedisPrefix.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithInMemoryStore backs every store with a process-local map. Limits and
// denylist entries are then not shared between processes.
func (b *Builder) WithInMemoryStore() *Builder {
	b.inMemory = true
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for windows, expiries and audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithDeliveryChannel(ch DeliveryChannel) *Builder {
	b.delivery = ch
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithThrottlePolicies binds rate-limit policies to operation ids for
// [Engine.CheckThrottle]. The map is copied.
func (b *Builder) WithThrottlePolicies(policies map[string]throttle.Policy) *Builder {
	b.policies = make(map[string]throttle.Policy, len(policies))
	for op, p := range policies {
		b.policies[op] = p
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	flowsEnabled := cfg.PasswordReset.Enabled || cfg.TwoFactor.Enabled || cfg.Verification.Enabled
	if flowsEnabled && b.userProvider == nil {
		return nil, errors.New("user provider required when a flow is enabled")
	}
	if flowsEnabled && b.delivery == nil {
		return nil, errors.New("delivery channel required when a flow is enabled")
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("authguard")

	// -------- KEY-VALUE STORE --------
	var store kv.Store
	switch {
	case b.redis != nil:
		store = kv.NewRedisStore(b.redis, cfg.Store.RedisPrefix)
	case b.inMemory:
		store = kv.NewMemoryStore(clock)
	default:
		return nil, errors.New("redis client or in-memory store required")
	}

	// -------- CRYPTO --------
	sealer, err := envelope.New(cfg.Encryption.keyMaterial())
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}
	hasher, err := hashing.NewArgon2(cfg.Hashing.hashing())
	if err != nil {
		return nil, fmt.Errorf("hashing: %w", err)
	}

	// -------- THROTTLE TABLE --------
	registry, err := throttle.NewRegistry(b.policies)
	if err != nil {
		return nil, err
	}

	limiter := rate.New(store, clock)
	metrics := NewMetrics(cfg.Metrics)

	engine := &Engine{
		config:   cfg,
		log:      logger,
		clock:    clock,
		store:    store,
		sealer:   sealer,
		hasher:   hasher,
		limiter:  limiter,
		denylist: denylist.New(store, clock, cfg.Denylist.LocationRetention),
		devices:  device.NewRegistry(store, clock, cfg.Device.Retention),
		throttle: registry,
		tokens:   token.NewIssuer(sealer, clock),

		consumed:   stores.NewConsumedTokenStore(store),
		challenges: stores.NewChallengeStore(store),
		methods:    stores.NewMethodStore(store),

		resetLimiter: limiters.NewPasswordResetLimiter(limiter, limiters.PasswordResetConfig{
			RequestPerIP:         window(cfg.PasswordReset.RequestPerIP),
			RequestPerIdentifier: window(cfg.PasswordReset.RequestPerIdentifier),
			ConfirmPerIP:         window(cfg.PasswordReset.ConfirmPerIP),
		}),
		twoFactorLimiter: limiters.NewTwoFactorLimiter(limiter, limiters.TwoFactorConfig{
			IssuePerUser:   window(cfg.TwoFactor.IssuePerUser),
			AttemptPerUser: limiters.Window{Limit: cfg.TwoFactor.MaxAttempts, Period: cfg.TwoFactor.AttemptWindow},
		}),
		autoBlock: limiters.NewAutoBlocker(limiter, limiters.AutoBlockConfig{
			Threshold: cfg.Denylist.AutoBlock.Limit,
			Window:    cfg.Denylist.AutoBlock.Period,
		}),
		verificationLimiter: limiters.NewVerificationLimiter(limiter, limiters.VerificationConfig{
			RequestPerIP:      window(cfg.Verification.RequestPerIP),
			RequestPerSubject: window(cfg.Verification.RequestPerSubject),
			ConfirmPerIP:      window(cfg.Verification.ConfirmPerIP),
		}),

		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			MaskIP:     maskIP,
			OnDrop:     func() { metrics.Inc(MetricAuditDropped) },
		}, b.auditSink),
		metrics: metrics,

		userProvider: b.userProvider,
		delivery:     b.delivery,
	}

	logger.Info("engine built",
		zap.String("algorithm", cfg.Encryption.Algorithm),
		zap.Bool("redis", b.redis != nil),
		zap.Strings("throttled_operations", registry.Operations()),
		zap.Bool("password_reset", cfg.PasswordReset.Enabled),
		zap.Bool("two_factor", cfg.TwoFactor.Enabled),
		zap.Bool("verification", cfg.Verification.Enabled),
	)

	b.built = true
	return engine, nil
}

func window(w WindowConfig) limiters.Window {
	return limiters.Window{Limit: w.Limit, Period: w.Period}
}

func cloneConfig(cfg Config) Config {
	return cfg
}
