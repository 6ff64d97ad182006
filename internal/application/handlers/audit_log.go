package handlers

import (
	"context"
	"time"

	"boutique-backend/internal/domain/event"

	"go.uber.org/zap"
)

// AuditLogger writes an audit trail entry for every domain event it
// receives, and records standalone security events (signature failures,
// denied admin access). Entries go to the structured log under the "audit"
// namespace so they can be shipped separately.
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates an audit logger
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("audit")}
}

// Handle implements bus.EventHandler
func (a *AuditLogger) Handle(ctx context.Context, evt event.Event) error {
	a.logger.Info("domain event",
		zap.String("event_id", evt.EventID),
		zap.String("event_type", evt.EventType),
		zap.String("aggregate_id", evt.AggregateID),
		zap.String("aggregate_type", evt.AggregateType),
		zap.Int("version", evt.Version),
		zap.String("user_id", evt.UserID),
		zap.Time("occurred_at", evt.OccurredAt),
	)
	return nil
}

// RecordSecurityEvent logs a security-relevant occurrence
func (a *AuditLogger) RecordSecurityEvent(ctx context.Context, kind string, fields map[string]string) {
	zapFields := make([]zap.Field, 0, len(fields)+2)
	zapFields = append(zapFields,
		zap.String("security_event", kind),
		zap.Time("recorded_at", time.Now().UTC()),
	)
	for key, value := range fields {
		zapFields = append(zapFields, zap.String(key, value))
	}
	a.logger.Warn("security event", zapFields...)
}
