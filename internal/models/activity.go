package models

import (
	"encoding/json"
	"time"
)

// Activity actions recorded by the orchestrations.
const (
	ActivityAttendanceEntered = "ATTENDANCE_ENTERED"
	ActivityGradesEntered     = "GRADES_ENTERED"
	ActivityStudentTransfer   = "STUDENT_TRANSFERRED"
	ActivityTransferDeleted   = "TRANSFER_DELETED"
	ActivityEnrollmentDecided = "ENROLLMENT_DECIDED"
	ActivityStudentCreated    = "STUDENT_CREATED"
	ActivityStudentDeleted    = "STUDENT_DELETED"
	ActivityInvoiceCreated    = "INVOICE_CREATED"
	ActivityRosterRepaired    = "ROSTER_REPAIRED"
)

// ActivityLog is an append-only audit line written after a mutation.
type ActivityLog struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	UserName  string          `db:"user_name" json:"user_name"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	UserID string
	Action string
	Limit  int
}
