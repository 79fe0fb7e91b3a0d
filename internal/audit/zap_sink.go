package audit

import (
	"context"

	"go.uber.org/zap"
)

// ZapSink writes each event as one structured log entry. Denials log at
// warn, failures at info, allowed decisions at debug.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("audit")}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	fields := make([]zap.Field, 0, 6+len(event.Metadata))
	fields = append(fields,
		zap.Time("timestamp", event.Timestamp),
		zap.String("decision", string(event.Decision)),
	)
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}

	switch event.Decision {
	case DecisionDeny:
		s.logger.Warn(event.EventType, fields...)
	case DecisionFail:
		s.logger.Info(event.EventType, fields...)
	default:
		s.logger.Debug(event.EventType, fields...)
	}
}
