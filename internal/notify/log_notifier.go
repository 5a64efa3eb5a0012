// Package notify holds the delivery channels for roster notifications.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/roster-api/internal/models"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// Name identifies the channel.
func (n *LogNotifier) Name() string { return "log" }

// Send logs the notification at a level matching its severity.
func (n *LogNotifier) Send(_ context.Context, note models.Notification) error {
	fields := []zap.Field{
		zap.String("source", note.Source),
		zap.String("message", note.Message),
		zap.Time("at", note.At),
	}
	if note.Detail != "" {
		fields = append(fields, zap.String("detail", note.Detail))
	}
	if note.Level == models.NotificationError {
		n.logger.Warn("notification", fields...)
		return nil
	}
	n.logger.Info("notification", fields...)
	return nil
}
