package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// ActivityRepository appends and reads the activity log.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends an activity entry.
func (r *ActivityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if len(entry.Details) == 0 {
		entry.Details = []byte("{}")
	}
	const query = `INSERT INTO activity_logs (id, user_id, user_name, action, details, timestamp)
        VALUES ($1, $2, $3, $4, $5::jsonb, $6)`
	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.UserID, entry.UserName, entry.Action, string(entry.Details), entry.Timestamp); err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}

// List returns recent activity entries.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, error) {
	var where whereBuilder
	if filter.UserID != "" {
		where.add("user_id = $%d", filter.UserID)
	}
	if filter.Action != "" {
		where.add("action = $%d", filter.Action)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT id, user_id, user_name, action, details, timestamp FROM activity_logs %s ORDER BY timestamp DESC LIMIT %d", where.clause(), limit)
	var entries []models.ActivityLog
	if err := r.db.SelectContext(ctx, &entries, query, where.args...); err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	return entries, nil
}
