package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// NotificationRepository stores inbox notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, title, description, timestamp, read)
        VALUES (:id, :user_id, :title, :description, :timestamp, :read)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := "SELECT id, user_id, title, description, timestamp, read FROM notifications WHERE user_id = $1"
	if unreadOnly {
		query += " AND read = false"
	}
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT %d", limit)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags a notification owned by userID as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return expectAffected(result, "mark notification read")
}
