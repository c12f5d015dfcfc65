package dto

import "github.com/noah-isme/sma-ledger-api/internal/models"

// SubmitEnrollmentRequest opens an enrollment request.
type SubmitEnrollmentRequest struct {
	StudentName      string `json:"student_name" validate:"required"`
	StudentCPF       string `json:"student_cpf" validate:"required"`
	StudentBirthDate string `json:"student_birth_date"`
	GuardianName     string `json:"guardian_name" validate:"required"`
	GuardianCPF      string `json:"guardian_cpf"`
	GuardianPhone    string `json:"guardian_phone"`
	DesiredClass     string `json:"desired_class" validate:"required"`
}

// EnrollmentDecisionRequest approves or rejects a pending enrollment.
type EnrollmentDecisionRequest struct {
	Decision models.EnrollmentStatus `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
}

// EnrollmentDecisionResponse returns the decided enrollment and any warnings.
type EnrollmentDecisionResponse struct {
	Enrollment *models.Enrollment `json:"enrollment"`
	Student    *models.Student    `json:"student,omitempty"`
	Warnings   []models.Warning   `json:"warnings,omitempty"`
}
