package models

import "time"

// AttendanceStatus marks presence for one day.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
)

// AttendanceRecord is unique per (student, date).
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceSummary counts a student's attendance records.
type AttendanceSummary struct {
	Present int `db:"present"`
	Total   int `db:"total"`
}

// Rate returns the attendance percentage. No records means full attendance.
func (s AttendanceSummary) Rate() float64 {
	if s.Total == 0 {
		return 100
	}
	return float64(s.Present) / float64(s.Total) * 100
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	ClassID   string
	StudentID string
	Date      string
}
