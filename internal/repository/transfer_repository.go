package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

const transferColumns = "id, student_id, from_class, to_class, date, reason, observations, created_by, created_at, updated_at"

// TransferRepository stores the transfer history.
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository constructs the repository.
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create appends a transfer record.
func (r *TransferRepository) Create(ctx context.Context, record *models.TransferRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO transfer_records (id, student_id, from_class, to_class, date, reason, observations, created_by, created_at, updated_at)
        VALUES (:id, :student_id, :from_class, :to_class, :date, :reason, :observations, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create transfer record: %w", err)
	}
	return nil
}

// FindByID returns a transfer record.
func (r *TransferRepository) FindByID(ctx context.Context, id string) (*models.TransferRecord, error) {
	var record models.TransferRecord
	if err := r.db.GetContext(ctx, &record, "SELECT "+transferColumns+" FROM transfer_records WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindMatching returns the record with the same student, classes and date,
// which lets a retried transfer reuse the entry written by an earlier attempt.
func (r *TransferRepository) FindMatching(ctx context.Context, studentID, fromClass, toClass string, date time.Time) (*models.TransferRecord, error) {
	var record models.TransferRecord
	query := "SELECT " + transferColumns + " FROM transfer_records WHERE student_id = $1 AND from_class = $2 AND to_class = $3 AND date = $4 ORDER BY created_at ASC LIMIT 1"
	if err := r.db.GetContext(ctx, &record, query, studentID, fromClass, toClass, date); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns transfer records, newest first.
func (r *TransferRepository) List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRecord, int, error) {
	var where whereBuilder
	if filter.StudentID != "" {
		where.add("student_id = $%d", filter.StudentID)
	}
	if filter.Class != "" {
		where.add("(from_class = $%[1]d OR to_class = $%[1]d)", filter.Class)
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM transfer_records %s ORDER BY date DESC, created_at DESC LIMIT %d OFFSET %d", transferColumns, where.clause(), limit, offset)
	var records []models.TransferRecord
	if err := r.db.SelectContext(ctx, &records, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list transfer records: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM transfer_records "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count transfer records: %w", err)
	}
	return records, total, nil
}

// Update applies the non-nil fields of patch.
func (r *TransferRepository) Update(ctx context.Context, id string, patch models.TransferPatch) (*models.TransferRecord, error) {
	var set setBuilder
	if patch.FromClass != nil {
		set.add("from_class", *patch.FromClass)
	}
	if patch.ToClass != nil {
		set.add("to_class", *patch.ToClass)
	}
	if patch.Date != nil {
		set.add("date", *patch.Date)
	}
	if patch.Reason != nil {
		set.add("reason", *patch.Reason)
	}
	if patch.Observations != nil {
		set.add("observations", *patch.Observations)
	}
	set.add("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE transfer_records SET %s WHERE id = %s RETURNING %s", set.clause(), set.arg(id), transferColumns)
	var record models.TransferRecord
	if err := r.db.GetContext(ctx, &record, query, set.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update transfer record: %w", err)
	}
	return &record, nil
}

// Delete removes a transfer record.
func (r *TransferRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM transfer_records WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete transfer record: %w", err)
	}
	return expectAffected(result, "delete transfer record")
}
