package authguard

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/authguard/internal/audit"
	"github.com/MrEthical07/authguard/internal/denylist"
	"github.com/MrEthical07/authguard/internal/device"
	"go.uber.org/zap"
)

// RequestAttributes are the request properties a device fingerprint is
// derived from. They are never stored or logged.
type RequestAttributes = device.Attributes

// DeviceRecord is one known (user, fingerprint) pair.
type DeviceRecord = device.Record

// BlockEntry is an active denylist entry. A nil ExpiresAt is permanent.
type BlockEntry = denylist.Entry

// TwoFactorMethod selects where two-factor codes are delivered.
type TwoFactorMethod string

const (
	TwoFactorEmail TwoFactorMethod = "email"
	TwoFactorSMS   TwoFactorMethod = "sms"
)

func (m TwoFactorMethod) valid() bool {
	return m == TwoFactorEmail || m == TwoFactorSMS
}

// UserRecord is the slice of the account the security core needs.
type UserRecord struct {
	UserID     string
	Identifier string
	Email      string
	Phone      string
}

// ContactFor returns the delivery destination for method, or "" when the
// user has none.
func (u UserRecord) ContactFor(method TwoFactorMethod) string {
	switch method {
	case TwoFactorEmail:
		return u.Email
	case TwoFactorSMS:
		return u.Phone
	default:
		return ""
	}
}

// UserProvider connects the engine to the account store. Lookups for unknown
// users should return [ErrUserNotFound].
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}

// Purpose values carried by [Message].
const (
	PurposePasswordReset = "password_reset"
	PurposeTwoFactorCode = "two_factor_code"
	PurposeVerifyEmail   = "verify_email"
	PurposeVerifyPhone   = "verify_phone"
)

// Message is one outbound secret for the delivery channel. Payload is a
// token or a code and must not be logged.
type Message struct {
	Purpose     string
	Method      TwoFactorMethod
	UserID      string
	Destination string
	Payload     string
	ExpiresAt   time.Time
}

// DeliveryChannel sends messages by email or SMS.
type DeliveryChannel interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryFunc adapts a function to [DeliveryChannel].
type DeliveryFunc func(ctx context.Context, msg Message) error

func (f DeliveryFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LoginAssessment is the risk verdict for a login that already passed
// credential checks.
type LoginAssessment struct {
	Fingerprint      string
	NewDevice        bool
	TrustedDevice    bool
	UnusualLocation  bool
	RequireTwoFactor bool
}

// ThrottleDecision reports the counter state after [Engine.CheckThrottle].
type ThrottleDecision struct {
	Operation string
	Key       string
	Skipped   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditDecision classifies an [AuditEvent].
type AuditDecision = internalaudit.Decision

const (
	AuditDecisionAllow = internalaudit.DecisionAllow
	AuditDecisionDeny  = internalaudit.DecisionDeny
	AuditDecisionFail  = internalaudit.DecisionFail
)

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// AuditSinkFunc adapts a function to [AuditSink].
type AuditSinkFunc = internalaudit.SinkFunc

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON lines to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink is an [AuditSink] that writes events to a zap logger.
type ZapSink = internalaudit.ZapSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
