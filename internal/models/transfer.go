package models

import "time"

// TransferRecord is one entry of a student's transfer history.
type TransferRecord struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	FromClass    string    `db:"from_class" json:"from_class"`
	ToClass      string    `db:"to_class" json:"to_class"`
	Date         time.Time `db:"date" json:"date"`
	Reason       string    `db:"reason" json:"reason"`
	Observations string    `db:"observations" json:"observations"`
	CreatedBy    *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// TransferPatch carries record fields to change.
type TransferPatch struct {
	FromClass    *string
	ToClass      *string
	Date         *time.Time
	Reason       *string
	Observations *string
}

// TransferFilter narrows transfer history listings.
type TransferFilter struct {
	StudentID string
	Class     string
	Page      int
	PageSize  int
}

// TransferOutcome is the caller-visible state after a transfer run.
type TransferOutcome struct {
	Student   *Student        `json:"student"`
	FromClass *Class          `json:"from_class,omitempty"`
	ToClass   *Class          `json:"to_class,omitempty"`
	Record    *TransferRecord `json:"record"`
	Resumed   bool            `json:"resumed"`
	Warnings  []Warning       `json:"warnings,omitempty"`
}
