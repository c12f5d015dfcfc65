package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
	"github.com/noah-isme/sma-ledger-api/pkg/jobs"
)

// JobTypeNotification is the queue job type for deferred notifications.
const JobTypeNotification = "notification"

// Notifier delivers inbox messages. Notify never fails from the caller's
// point of view; the triggering operation must not depend on it.
type Notifier interface {
	Notify(ctx context.Context, userID, title, description string)
}

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationService is the fire-and-forget notification sink. Without a
// queue it writes inline; with one it hands the write to the worker pool.
type NotificationService struct {
	repo    notificationStore
	queue   jobQueue
	clock   clock.Clock
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(repo notificationStore, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, clock: clk, metrics: metrics, logger: logger}
}

// UseQueue switches delivery to the given queue.
func (s *NotificationService) UseQueue(q jobQueue) {
	s.queue = q
}

// Notify creates an unread notification stamped with the current time.
func (s *NotificationService) Notify(ctx context.Context, userID, title, description string) {
	if userID == "" {
		return
	}
	n := models.Notification{
		UserID:      userID,
		Title:       title,
		Description: description,
		Timestamp:   s.clock.Now().UTC(),
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{Type: JobTypeNotification, Payload: n}); err != nil {
			s.metrics.RecordNotificationFailure("async")
			s.logger.Warn("failed to enqueue notification", zap.String("user_id", userID), zap.String("title", title), zap.Error(err))
		}
		return
	}

	if err := s.repo.Create(ctx, &n); err != nil {
		s.metrics.RecordNotificationFailure("sync")
		s.logger.Warn("failed to create notification", zap.String("user_id", userID), zap.String("title", title), zap.Error(err))
	}
}

// HandleJob is the queue handler for deferred notifications. Returning an
// error makes the queue retry.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// OnGiveUp records notifications dropped after the queue exhausted retries.
func (s *NotificationService) OnGiveUp(job jobs.Job, err error) {
	s.metrics.RecordNotificationFailure("async")
	s.logger.Warn("notification dropped", zap.String("job_id", job.ID), zap.Error(err))
}

// ListForUser returns the user's inbox.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID, unreadOnly, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, string, string, string) {}
