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

const classColumns = "id, name, teacher_id, student_ids, created_at, updated_at"

// ClassRepository handles persistence for classes and their rosters.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new repository instance.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching the filter with the total count.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	var where whereBuilder
	if filter.Search != "" {
		where.add("LOWER(name) LIKE $%d", "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.TeacherID != "" {
		where.add("teacher_id = $%d", filter.TeacherID)
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM classes %s ORDER BY name ASC LIMIT %d OFFSET %d", classColumns, where.clause(), limit, offset)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// ListAll returns every class; used by roster audits.
func (r *ClassRepository) ListAll(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, "SELECT "+classColumns+" FROM classes ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list all classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, "SELECT "+classColumns+" FROM classes WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByName returns a class by its unique name.
func (r *ClassRepository) FindByName(ctx context.Context, name string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, "SELECT "+classColumns+" FROM classes WHERE name = $1", name); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	if class.StudentIDs == nil {
		class.StudentIDs = pq.StringArray{}
	}
	const query = `INSERT INTO classes (id, name, teacher_id, student_ids, created_at, updated_at)
        VALUES (:id, :name, :teacher_id, :student_ids, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of patch and returns the stored class.
func (r *ClassRepository) Update(ctx context.Context, id string, patch models.ClassPatch) (*models.Class, error) {
	var set setBuilder
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.TeacherID != nil {
		set.add("teacher_id", *patch.TeacherID)
	}
	set.add("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE classes SET %s WHERE id = %s RETURNING %s", set.clause(), set.arg(id), classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, set.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update class: %w", err)
	}
	return &class, nil
}

// UpdateRoster replaces a class roster in one statement.
func (r *ClassRepository) UpdateRoster(ctx context.Context, id string, studentIDs []string) error {
	if studentIDs == nil {
		studentIDs = []string{}
	}
	result, err := r.db.ExecContext(ctx, "UPDATE classes SET student_ids = $1, updated_at = $2 WHERE id = $3", pq.Array(studentIDs), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update class roster: %w", err)
	}
	return expectAffected(result, "update class roster")
}

// Delete removes a class.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM classes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return expectAffected(result, "delete class")
}
