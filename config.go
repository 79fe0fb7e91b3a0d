package authguard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authguard/hashing"
	"github.com/MrEthical07/authguard/internal/envelope"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every variable read by [LoadConfigFromEnv].
const EnvPrefix = "AUTHGUARD_"

// Config is the full engine configuration. Start from [DefaultConfig] and
// override fields, or load it with [LoadConfigFromEnv].
type Config struct {
	Store         StoreConfig         `envPrefix:"STORE_"`
	Encryption    EncryptionConfig    `envPrefix:"ENCRYPTION_"`
	Hashing       HashingConfig       `envPrefix:"HASH_"`
	RateLimit     RateLimitConfig     `envPrefix:"RATE_LIMIT_"`
	Denylist      DenylistConfig      `envPrefix:"DENYLIST_"`
	Device        DeviceConfig        `envPrefix:"DEVICE_"`
	PasswordReset PasswordResetConfig `envPrefix:"RESET_"`
	TwoFactor     TwoFactorConfig     `envPrefix:"TWO_FACTOR_"`
	Verification  VerificationConfig  `envPrefix:"VERIFICATION_"`
	Audit         AuditConfig         `envPrefix:"AUDIT_"`
	Metrics       MetricsConfig       `envPrefix:"METRICS_"`
}

/*
====================================
STORE / CRYPTO CONFIG
====================================
*/

// StoreConfig locates the key-value backend. RedisAddr is only read by
// tooling that dials Redis itself; the engine takes a client.
type StoreConfig struct {
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD,unset"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisPrefix   string `env:"REDIS_PREFIX"`
}

// EncryptionConfig selects the envelope cipher. Secret is the master key
// and must be at least 32 bytes.
type EncryptionConfig struct {
	Algorithm  string `env:"ALGORITHM"`
	Secret     string `env:"SECRET,unset"`
	IVLength   int    `env:"IV_LENGTH"`
	SaltLength int    `env:"SALT_LENGTH"`
}

// String redacts the secret.
func (c EncryptionConfig) String() string {
	return fmt.Sprintf("EncryptionConfig{Algorithm:%s IVLength:%d SaltLength:%d Secret:[REDACTED]}", c.Algorithm, c.IVLength, c.SaltLength)
}

// GoString redacts the secret.
func (c EncryptionConfig) GoString() string {
	return c.String()
}

func (c EncryptionConfig) keyMaterial() envelope.KeyMaterial {
	return envelope.KeyMaterial{
		Algorithm:  envelope.Algorithm(c.Algorithm),
		Secret:     []byte(c.Secret),
		IVLength:   c.IVLength,
		SaltLength: c.SaltLength,
	}
}

// HashingConfig holds the Argon2id cost parameters. Memory is in KiB.
type HashingConfig struct {
	Memory      uint32 `env:"MEMORY"`
	Time        uint32 `env:"TIME"`
	Parallelism uint8  `env:"PARALLELISM"`
	SaltLength  uint32 `env:"SALT_LENGTH"`
	KeyLength   uint32 `env:"KEY_LENGTH"`
}

func (c HashingConfig) hashing() hashing.Config {
	return hashing.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

/*
====================================
DEFENCE CONFIG
====================================
*/

// RateLimitConfig is the policy applied to operations without a registered
// throttle policy.
type RateLimitConfig struct {
	DefaultLimit int           `env:"DEFAULT_LIMIT"`
	DefaultTTL   time.Duration `env:"DEFAULT_TTL"`
}

// DenylistConfig controls automatic blocking and the known-location
// history.
type DenylistConfig struct {
	// DefaultBlockDuration is applied to automatic blocks. Zero blocks
	// permanently.
	DefaultBlockDuration time.Duration `env:"DEFAULT_BLOCK_DURATION"`
	// AutoBlock blocks a client IP once it collects Limit offences within
	// Period. A zero Period disables automatic blocking.
	AutoBlock         WindowConfig  `envPrefix:"AUTO_BLOCK_"`
	LocationRetention time.Duration `env:"LOCATION_RETENTION"`
}

// DeviceConfig controls device record retention. Zero keeps records until
// they are removed.
type DeviceConfig struct {
	Retention time.Duration `env:"RETENTION"`
}

// WindowConfig is one fixed-window budget. A zero Period disables it.
type WindowConfig struct {
	Limit  int           `env:"LIMIT"`
	Period time.Duration `env:"PERIOD"`
}

/*
====================================
FLOW CONFIG
====================================
*/

// PasswordResetConfig controls the password reset flow.
type PasswordResetConfig struct {
	Enabled              bool          `env:"ENABLED"`
	TokenTTL             time.Duration `env:"TOKEN_TTL"`
	MinPasswordLength    int           `env:"MIN_PASSWORD_LENGTH"`
	RequestPerIP         WindowConfig  `envPrefix:"REQUEST_IP_"`
	RequestPerIdentifier WindowConfig  `envPrefix:"REQUEST_IDENTIFIER_"`
	ConfirmPerIP         WindowConfig  `envPrefix:"CONFIRM_IP_"`
}

// TwoFactorConfig controls two-factor challenges. MaxAttempts wrong or right
// codes are accepted per AttemptWindow before verification is rate limited.
type TwoFactorConfig struct {
	Enabled       bool          `env:"ENABLED"`
	CodeDigits    int           `env:"CODE_DIGITS"`
	CodeTTL       time.Duration `env:"CODE_TTL"`
	IssuePerUser  WindowConfig  `envPrefix:"ISSUE_"`
	MaxAttempts   int           `env:"MAX_ATTEMPTS"`
	AttemptWindow time.Duration `env:"ATTEMPT_WINDOW"`
}

// VerificationConfig controls email and phone verification links.
type VerificationConfig struct {
	Enabled           bool          `env:"ENABLED"`
	TokenTTL          time.Duration `env:"TOKEN_TTL"`
	RequestPerIP      WindowConfig  `envPrefix:"REQUEST_IP_"`
	RequestPerSubject WindowConfig  `envPrefix:"REQUEST_SUBJECT_"`
	ConfirmPerIP      WindowConfig  `envPrefix:"CONFIRM_IP_"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters and the hashing latency
// histogram.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the baseline configuration. Encryption.Secret is
// empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	h := hashing.DefaultConfig()

	return Config{
		Store: StoreConfig{
			RedisAddr:   "localhost:6379",
			RedisPrefix: "ag",
		},
		Encryption: EncryptionConfig{
			Algorithm: string(envelope.AESGCM),
		},
		Hashing: HashingConfig{
			Memory:      h.Memory,
			Time:        h.Time,
			Parallelism: h.Parallelism,
			SaltLength:  h.SaltLength,
			KeyLength:   h.KeyLength,
		},
		RateLimit: RateLimitConfig{
			DefaultLimit: 100,
			DefaultTTL:   time.Minute,
		},
		Denylist: DenylistConfig{
			DefaultBlockDuration: time.Hour,
			AutoBlock:            WindowConfig{Limit: 20, Period: 10 * time.Minute},
			LocationRetention:    90 * 24 * time.Hour,
		},
		Device: DeviceConfig{
			Retention: 180 * 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:              true,
			TokenTTL:             15 * time.Minute,
			MinPasswordLength:    8,
			RequestPerIP:         WindowConfig{Limit: 20, Period: time.Hour},
			RequestPerIdentifier: WindowConfig{Limit: 5, Period: time.Hour},
			ConfirmPerIP:         WindowConfig{Limit: 20, Period: 15 * time.Minute},
		},
		TwoFactor: TwoFactorConfig{
			Enabled:       true,
			CodeDigits:    6,
			CodeTTL:       5 * time.Minute,
			IssuePerUser:  WindowConfig{Limit: 5, Period: 15 * time.Minute},
			MaxAttempts:   5,
			AttemptWindow: 15 * time.Minute,
		},
		Verification: VerificationConfig{
			Enabled:           true,
			TokenTTL:          24 * time.Hour,
			RequestPerIP:      WindowConfig{Limit: 20, Period: time.Hour},
			RequestPerSubject: WindowConfig{Limit: 5, Period: time.Hour},
			ConfirmPerIP:      WindowConfig{Limit: 30, Period: 15 * time.Minute},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// LoadConfigFromEnv overlays AUTHGUARD_* environment variables on the
// defaults and validates the result. The secret variables are unset from the
// process environment once read.
func LoadConfigFromEnv() (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if len(c.Encryption.Secret) < 32 {
		return errors.New("Encryption Secret must be at least 32 bytes")
	}
	switch envelope.Algorithm(c.Encryption.Algorithm) {
	case envelope.AESGCM, envelope.ChaCha20Poly1305, envelope.XChaCha20Poly1305:
	default:
		return fmt.Errorf("unsupported Encryption Algorithm %q", c.Encryption.Algorithm)
	}
	if c.Encryption.IVLength < 0 || c.Encryption.SaltLength < 0 {
		return errors.New("Encryption IVLength and SaltLength must be >= 0")
	}

	if c.RateLimit.DefaultLimit < 0 {
		return errors.New("RateLimit DefaultLimit must be >= 0")
	}
	if err := validateWindowDuration("RateLimit DefaultTTL", c.RateLimit.DefaultTTL, false); err != nil {
		return err
	}

	if c.Denylist.LocationRetention < 0 {
		return errors.New("Denylist LocationRetention must be >= 0")
	}
	if c.Denylist.DefaultBlockDuration < 0 {
		return errors.New("Denylist DefaultBlockDuration must be >= 0")
	}
	if err := validateWindow("Denylist AutoBlock", c.Denylist.AutoBlock); err != nil {
		return err
	}
	if c.Denylist.AutoBlock.Period > 0 && c.Denylist.AutoBlock.Limit == 0 {
		return errors.New("Denylist AutoBlock Limit must be > 0 when enabled")
	}
	if c.Device.Retention < 0 {
		return errors.New("Device Retention must be >= 0")
	}

	if c.PasswordReset.Enabled {
		if c.PasswordReset.TokenTTL < time.Second {
			return errors.New("PasswordReset TokenTTL must be >= 1s")
		}
		if c.PasswordReset.MinPasswordLength < 1 {
			return errors.New("PasswordReset MinPasswordLength must be >= 1")
		}
		for name, w := range map[string]WindowConfig{
			"PasswordReset RequestPerIP":         c.PasswordReset.RequestPerIP,
			"PasswordReset RequestPerIdentifier": c.PasswordReset.RequestPerIdentifier,
			"PasswordReset ConfirmPerIP":         c.PasswordReset.ConfirmPerIP,
		} {
			if err := validateWindow(name, w); err != nil {
				return err
			}
		}
	}

	if c.TwoFactor.Enabled {
		if c.TwoFactor.CodeDigits < 6 || c.TwoFactor.CodeDigits > 10 {
			return errors.New("TwoFactor CodeDigits must be between 6 and 10")
		}
		if c.TwoFactor.CodeTTL < time.Second {
			return errors.New("TwoFactor CodeTTL must be >= 1s")
		}
		if c.TwoFactor.MaxAttempts < 1 {
			return errors.New("TwoFactor MaxAttempts must be >= 1")
		}
		if err := validateWindowDuration("TwoFactor AttemptWindow", c.TwoFactor.AttemptWindow, false); err != nil {
			return err
		}
		if err := validateWindow("TwoFactor IssuePerUser", c.TwoFactor.IssuePerUser); err != nil {
			return err
		}
	}

	if c.Verification.Enabled {
		if c.Verification.TokenTTL < time.Second {
			return errors.New("Verification TokenTTL must be >= 1s")
		}
		for name, w := range map[string]WindowConfig{
			"Verification RequestPerIP":      c.Verification.RequestPerIP,
			"Verification RequestPerSubject": c.Verification.RequestPerSubject,
			"Verification ConfirmPerIP":      c.Verification.ConfirmPerIP,
		} {
			if err := validateWindow(name, w); err != nil {
				return err
			}
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if strings.ContainsAny(c.Store.RedisPrefix, " \t\r\n") {
		return errors.New("Store RedisPrefix must not contain whitespace")
	}

	return nil
}

func validateWindow(name string, w WindowConfig) error {
	if w.Limit < 0 {
		return fmt.Errorf("%s Limit must be >= 0", name)
	}
	return validateWindowDuration(name+" Period", w.Period, true)
}

func validateWindowDuration(name string, d time.Duration, allowZero bool) error {
	if d == 0 && allowZero {
		return nil
	}
	if d < time.Second || d%time.Second != 0 {
		return fmt.Errorf("%s must be a positive whole number of seconds", name)
	}
	return nil
}
