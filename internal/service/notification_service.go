package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/pkg/jobs"
)

// Notifier delivers a notification to one channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n models.Notification) error
}

const notificationJobType = "notification"

type notificationJob struct {
	channel      int
	notification models.Notification
}

// NotificationService fans notifications out to every channel through the
// background queue. Delivery failures are retried by the queue and never
// reach the caller.
type NotificationService struct {
	queue     *jobs.Queue
	notifiers []Notifier
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService constructs the dispatcher. Start must be called
// before notifications are delivered.
func NewNotificationService(notifiers []Notifier, metrics *MetricsService, workers int, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{notifiers: notifiers, metrics: metrics, logger: logger, now: time.Now}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: 2,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify raises a notification. It never blocks on delivery.
func (s *NotificationService) Notify(ctx context.Context, level, source, message string, cause error) {
	if s == nil {
		return
	}
	n := models.Notification{Level: level, Message: message, Source: source, At: s.now().UTC()}
	if cause != nil {
		n.Detail = cause.Error()
	}
	s.metrics.RecordNotification(level)
	for i := range s.notifiers {
		job := jobs.Job{ID: source, Type: notificationJobType, Payload: notificationJob{channel: i, notification: n}}
		if err := s.queue.TryEnqueue(job); err != nil {
			s.logger.Warn("notification dropped",
				zap.String("channel", s.notifiers[i].Name()),
				zap.String("message", message),
				zap.Error(err))
		}
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationJob)
	if !ok || payload.channel >= len(s.notifiers) {
		return nil
	}
	return s.notifiers[payload.channel].Send(ctx, payload.notification)
}
