package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleTeacher            UserRole = "TEACHER"
	RoleDirector           UserRole = "DIRECTOR"
	RoleSchoolSecretary    UserRole = "SCHOOL_SECRETARY"
	RoleGuardian           UserRole = "GUARDIAN"
	RoleStudent            UserRole = "STUDENT"
	RoleMunicipalSecretary UserRole = "MUNICIPAL_SECRETARY"
)

// User is an account. Guardians and students link to a student via StudentID.
type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      UserRole  `db:"role" json:"role"`
	StudentID *string   `db:"student_id" json:"student_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
