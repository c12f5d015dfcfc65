package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

const enrollmentColumns = `id, student_name, student_cpf, student_birth_date, guardian_name, guardian_cpf, guardian_phone,
        desired_class, status, submission_date, decided_at, decided_by, student_id`

// EnrollmentRepository persists enrollment requests.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs a new repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create stores a new enrollment request.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.SubmissionDate.IsZero() {
		enrollment.SubmissionDate = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentPending
	}
	const query = `INSERT INTO enrollments (id, student_name, student_cpf, student_birth_date, guardian_name, guardian_cpf, guardian_phone, desired_class, status, submission_date)
        VALUES (:id, :student_name, :student_cpf, :student_birth_date, :guardian_name, :guardian_cpf, :guardian_phone, :desired_class, :status, :submission_date)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByID loads an enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, "SELECT "+enrollmentColumns+" FROM enrollments WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments, oldest submission first.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var where whereBuilder
	if filter.Status != "" {
		where.add("status = $%d", filter.Status)
	}
	if filter.Search != "" {
		where.add("(LOWER(student_name) LIKE $%[1]d OR LOWER(guardian_name) LIKE $%[1]d)", "%"+strings.ToLower(filter.Search)+"%")
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM enrollments %s ORDER BY submission_date ASC LIMIT %d OFFSET %d", enrollmentColumns, where.clause(), limit, offset)
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// UpdateDecision moves a PENDING enrollment to its final status. It returns
// sql.ErrNoRows when the enrollment is missing or was already decided.
func (r *EnrollmentRepository) UpdateDecision(ctx context.Context, decision models.EnrollmentDecision) error {
	query := fmt.Sprintf(`UPDATE enrollments SET status = :status, decided_by = :decided_by, decided_at = :decided_at, student_id = :student_id
        WHERE id = :id AND status = '%s'`, models.EnrollmentPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":         decision.ID,
		"status":     decision.Status,
		"decided_by": decision.DecidedBy,
		"decided_at": decision.DecidedAt,
		"student_id": decision.StudentID,
	})
	if err != nil {
		return fmt.Errorf("update enrollment decision: %w", err)
	}
	return expectAffected(result, "update enrollment decision")
}
