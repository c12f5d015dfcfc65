package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// AttendanceRepository stores daily attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert creates or overwrites the record for (student, date).
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO attendance_records (id, student_id, class_id, date, status, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (student_id, date) DO UPDATE SET status = EXCLUDED.status, class_id = EXCLUDED.class_id, updated_at = EXCLUDED.updated_at
        RETURNING id`
	if err := r.db.GetContext(ctx, &record.ID, query, record.ID, record.StudentID, record.ClassID, record.Date, record.Status, record.UpdatedAt); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// Summary counts present and total records of a student.
func (r *AttendanceRepository) Summary(ctx context.Context, studentID string) (models.AttendanceSummary, error) {
	var summary models.AttendanceSummary
	const query = `SELECT COUNT(*) FILTER (WHERE status = 'PRESENT') AS present, COUNT(*) AS total
        FROM attendance_records WHERE student_id = $1`
	if err := r.db.GetContext(ctx, &summary, query, studentID); err != nil {
		return summary, fmt.Errorf("attendance summary: %w", err)
	}
	return summary, nil
}

// List returns attendance records matching the filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	var where whereBuilder
	if filter.ClassID != "" {
		where.add("class_id = $%d", filter.ClassID)
	}
	if filter.StudentID != "" {
		where.add("student_id = $%d", filter.StudentID)
	}
	if filter.Date != "" {
		where.add("date = $%d", filter.Date)
	}
	var records []models.AttendanceRecord
	query := fmt.Sprintf("SELECT id, student_id, class_id, date, status, updated_at FROM attendance_records %s ORDER BY date DESC, student_id", where.clause())
	if err := r.db.SelectContext(ctx, &records, query, where.args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}
