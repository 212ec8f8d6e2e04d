package logger

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        int64
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogLoginEvent logs processed login events
func (al *AuditLogger) LogLoginEvent(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "login"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != 0 {
		attrs = append(attrs, slog.String("user_id", strconv.FormatInt(event.UserID, 10)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogNotification logs every notification the engine decides to emit
func (al *AuditLogger) LogNotification(notification models.Notification) {
	attrs := []slog.Attr{
		slog.String("audit_type", "notification"),
		slog.String("event_id", notification.ID),
		slog.String("event_type", notification.Type),
		slog.String("user_id", strconv.FormatInt(notification.UserID, 10)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if notification.Count > 0 {
		attrs = append(attrs, slog.Int64("count", notification.Count))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}
