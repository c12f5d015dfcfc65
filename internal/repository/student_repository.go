package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

const studentColumns = "id, name, cpf, birth_date, class, average_grade, attendance, status, guardians, created_at, updated_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var where whereBuilder
	if filter.Class != "" {
		where.add("class = $%d", filter.Class)
	}
	if filter.Status != "" {
		where.add("status = $%d", filter.Status)
	}
	if filter.Search != "" {
		where.add("(LOWER(name) LIKE $%[1]d OR cpf LIKE $%[1]d)", "%"+strings.ToLower(filter.Search)+"%")
	}

	allowedSorts := map[string]string{
		"name":          "name",
		"average_grade": "average_grade",
		"created_at":    "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM students %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, where.clause(), column, order, limit, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByCPF fetches a student by CPF.
func (r *StudentRepository) FindByCPF(ctx context.Context, cpf string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE cpf = $1 LIMIT 1", cpf); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListIDsByClass returns the ids of students whose class is className.
func (r *StudentRepository) ListIDsByClass(ctx context.Context, className string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM students WHERE class = $1 ORDER BY id", className); err != nil {
		return nil, fmt.Errorf("list student ids by class: %w", err)
	}
	return ids, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	if student.Guardians == nil {
		student.Guardians = pq.StringArray{}
	}
	const query = `INSERT INTO students (id, name, cpf, birth_date, class, average_grade, attendance, status, guardians, created_at, updated_at)
        VALUES (:id, :name, :cpf, :birth_date, :class, :average_grade, :attendance, :status, :guardians, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of patch and returns the stored student.
func (r *StudentRepository) Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error) {
	var set setBuilder
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.CPF != nil {
		set.add("cpf", *patch.CPF)
	}
	if patch.BirthDate != nil {
		set.add("birth_date", *patch.BirthDate)
	}
	if patch.Class != nil {
		set.add("class", *patch.Class)
	}
	if patch.AverageGrade != nil {
		set.add("average_grade", *patch.AverageGrade)
	}
	if patch.Attendance != nil {
		set.add("attendance", *patch.Attendance)
	}
	if patch.Status != nil {
		set.add("status", *patch.Status)
	}
	if patch.Guardians != nil {
		set.add("guardians", pq.Array(patch.Guardians))
	}
	set.add("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE students SET %s WHERE id = %s RETURNING %s", set.clause(), set.arg(id), studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, set.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update student: %w", err)
	}
	return &student, nil
}

// Delete removes a student permanently. Used for administrative correction only.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return expectAffected(result, "delete student")
}

func expectAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
