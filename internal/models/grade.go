package models

import "time"

// Grade is the live mark for one (student, subject, academic year). Writing
// the same key again overwrites the value.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	AcademicYear int       `db:"academic_year" json:"academic_year"`
	Grade        float64   `db:"grade" json:"grade"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GradeFilter narrows grade listings.
type GradeFilter struct {
	StudentID    string
	SubjectID    string
	AcademicYear int
}
