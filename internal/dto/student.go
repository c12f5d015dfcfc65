package dto

import "github.com/noah-isme/sma-ledger-api/internal/models"

// CreateStudentRequest registers a student manually.
type CreateStudentRequest struct {
	Name      string               `json:"name" validate:"required"`
	CPF       string               `json:"cpf" validate:"required"`
	BirthDate string               `json:"birth_date"`
	Class     string               `json:"class" validate:"required"`
	Status    models.StudentStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE TRANSFERRED DROPPED"`
	Guardians []string             `json:"guardians"`
}

// UpdateStudentRequest patches a student. Class changes go through transfers.
type UpdateStudentRequest struct {
	Name      *string               `json:"name" validate:"omitempty,min=1"`
	CPF       *string               `json:"cpf" validate:"omitempty,min=1"`
	BirthDate *string               `json:"birth_date"`
	Status    *models.StudentStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE TRANSFERRED DROPPED"`
	Guardians []string              `json:"guardians"`
}

// CreateClassRequest creates a class with an optional initial roster.
type CreateClassRequest struct {
	Name       string   `json:"name" validate:"required"`
	TeacherID  *string  `json:"teacher_id"`
	StudentIDs []string `json:"student_ids"`
}

// UpdateClassRequest changes class metadata.
type UpdateClassRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1"`
	TeacherID *string `json:"teacher_id"`
}
