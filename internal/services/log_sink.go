package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/loginsentry/internal/models"
)

// LogNotificationSink writes notifications to the structured log instead
// of delivering them. Default sink when no email delivery is configured;
// downstream systems can tail the log or a later sink can replace it.
type LogNotificationSink struct {
	logger *slog.Logger
}

// NewLogNotificationSink creates a new LogNotificationSink
func NewLogNotificationSink(logger *slog.Logger) *LogNotificationSink {
	return &LogNotificationSink{logger: logger}
}

// Emit logs the notification at warn level
func (s *LogNotificationSink) Emit(ctx context.Context, notification models.Notification) error {
	s.logger.Warn("login notification",
		slog.String("event_id", notification.ID),
		slog.String("type", notification.Type),
		slog.Int64("user_id", notification.UserID),
		slog.Int64("count", notification.Count))
	return nil
}
