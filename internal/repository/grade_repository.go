package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

const gradeColumns = "id, student_id, subject_id, academic_year, grade, updated_at"

// GradeRepository stores live grades keyed by (student, subject, academic year).
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert writes the grade, overwriting any earlier value for the same key.
// grade.ID is set to the id of the stored row.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	grade.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO grades (id, student_id, subject_id, academic_year, grade, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (student_id, subject_id, academic_year) DO UPDATE SET grade = EXCLUDED.grade, updated_at = EXCLUDED.updated_at
        RETURNING id`
	if err := r.db.GetContext(ctx, &grade.ID, query, grade.ID, grade.StudentID, grade.SubjectID, grade.AcademicYear, grade.Grade, grade.UpdatedAt); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// ListByStudent returns every grade of a student in the academic year.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID string, academicYear int) ([]models.Grade, error) {
	var grades []models.Grade
	query := "SELECT " + gradeColumns + " FROM grades WHERE student_id = $1 AND academic_year = $2"
	if err := r.db.SelectContext(ctx, &grades, query, studentID, academicYear); err != nil {
		return nil, fmt.Errorf("list grades by student: %w", err)
	}
	return grades, nil
}

// List returns grades matching the filter.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	var where whereBuilder
	if filter.StudentID != "" {
		where.add("student_id = $%d", filter.StudentID)
	}
	if filter.SubjectID != "" {
		where.add("subject_id = $%d", filter.SubjectID)
	}
	if filter.AcademicYear > 0 {
		where.add("academic_year = $%d", filter.AcademicYear)
	}
	var grades []models.Grade
	query := fmt.Sprintf("SELECT %s FROM grades %s ORDER BY student_id, subject_id", gradeColumns, where.clause())
	if err := r.db.SelectContext(ctx, &grades, query, where.args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}
