package models

import "time"

// EnrollmentStatus is the state of an enrollment request. PENDING is the only
// state that can change, and it changes once.
type EnrollmentStatus string

const (
	EnrollmentPending  EnrollmentStatus = "PENDING"
	EnrollmentApproved EnrollmentStatus = "APPROVED"
	EnrollmentRejected EnrollmentStatus = "REJECTED"
)

// Enrollment is a request to admit a new student.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentName      string           `db:"student_name" json:"student_name"`
	StudentCPF       string           `db:"student_cpf" json:"student_cpf"`
	StudentBirthDate *time.Time       `db:"student_birth_date" json:"student_birth_date,omitempty"`
	GuardianName     string           `db:"guardian_name" json:"guardian_name"`
	GuardianCPF      string           `db:"guardian_cpf" json:"guardian_cpf"`
	GuardianPhone    string           `db:"guardian_phone" json:"guardian_phone"`
	DesiredClass     string           `db:"desired_class" json:"desired_class"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	SubmissionDate   time.Time        `db:"submission_date" json:"submission_date"`
	DecidedAt        *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
	DecidedBy        *string          `db:"decided_by" json:"decided_by,omitempty"`
	StudentID        *string          `db:"student_id" json:"student_id,omitempty"`
}

// EnrollmentDecision is the single-statement transition out of PENDING.
type EnrollmentDecision struct {
	ID        string
	Status    EnrollmentStatus
	DecidedBy string
	DecidedAt time.Time
	StudentID *string
}

// EnrollmentFilter narrows enrollment listings.
type EnrollmentFilter struct {
	Status   EnrollmentStatus
	Search   string
	Page     int
	PageSize int
}
