package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

const userColumns = "id, name, email, role, student_id, created_at"

// UserRepository reads user accounts. Account management is external.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID fetches a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindGuardiansByStudent returns guardian accounts linked to the student.
func (r *UserRepository) FindGuardiansByStudent(ctx context.Context, studentID string) ([]models.User, error) {
	var users []models.User
	query := "SELECT " + userColumns + " FROM users WHERE role = $1 AND student_id = $2 ORDER BY created_at ASC"
	if err := r.db.SelectContext(ctx, &users, query, models.RoleGuardian, studentID); err != nil {
		return nil, fmt.Errorf("find guardians by student: %w", err)
	}
	return users, nil
}

// FindGuardiansByName returns guardian accounts whose name matches exactly.
func (r *UserRepository) FindGuardiansByName(ctx context.Context, name string) ([]models.User, error) {
	var users []models.User
	query := "SELECT " + userColumns + " FROM users WHERE role = $1 AND name = $2 ORDER BY created_at ASC"
	if err := r.db.SelectContext(ctx, &users, query, models.RoleGuardian, name); err != nil {
		return nil, fmt.Errorf("find guardians by name: %w", err)
	}
	return users, nil
}
