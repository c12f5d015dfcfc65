package models

import (
	"time"

	"github.com/lib/pq"
)

// StudentStatus describes where a student stands in the school lifecycle.
type StudentStatus string

const (
	StudentStatusActive      StudentStatus = "ACTIVE"
	StudentStatusInactive    StudentStatus = "INACTIVE"
	StudentStatusTransferred StudentStatus = "TRANSFERRED"
	StudentStatusDropped     StudentStatus = "DROPPED"
)

// Valid reports whether s is a known status.
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentStatusActive, StudentStatusInactive, StudentStatusTransferred, StudentStatusDropped:
		return true
	}
	return false
}

// Student is the authoritative record of which class a learner sits in.
// Class holds the class name, not its id.
type Student struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	CPF          string         `db:"cpf" json:"cpf"`
	BirthDate    *time.Time     `db:"birth_date" json:"birth_date,omitempty"`
	Class        string         `db:"class" json:"class"`
	AverageGrade float64        `db:"average_grade" json:"average_grade"`
	Attendance   float64        `db:"attendance" json:"attendance"`
	Status       StudentStatus  `db:"status" json:"status"`
	Guardians    pq.StringArray `db:"guardians" json:"guardians"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// StudentPatch carries the fields to change; nil fields are left untouched.
type StudentPatch struct {
	Name         *string        `json:"name,omitempty"`
	CPF          *string        `json:"cpf,omitempty"`
	BirthDate    *time.Time     `json:"birth_date,omitempty"`
	Class        *string        `json:"class,omitempty"`
	AverageGrade *float64       `json:"average_grade,omitempty"`
	Attendance   *float64       `json:"attendance,omitempty"`
	Status       *StudentStatus `json:"status,omitempty"`
	Guardians    []string       `json:"guardians,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Class     string
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
