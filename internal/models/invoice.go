package models

import "time"

// InvoiceStatus tracks payment of a monthly invoice.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "PENDING"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceOverdue InvoiceStatus = "OVERDUE"
)

// Invoice is unique per (student, month, year).
type Invoice struct {
	ID         string        `db:"id" json:"id"`
	StudentID  string        `db:"student_id" json:"student_id"`
	Month      int           `db:"month" json:"month"`
	Year       int           `db:"year" json:"year"`
	Amount     float64       `db:"amount" json:"amount"`
	DueDate    time.Time     `db:"due_date" json:"due_date"`
	Status     InvoiceStatus `db:"status" json:"status"`
	PaymentURL *string       `db:"payment_url" json:"payment_url,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// InvoicePatch carries invoice fields to change.
type InvoicePatch struct {
	Amount     *float64       `json:"amount,omitempty"`
	DueDate    *time.Time     `json:"due_date,omitempty"`
	Status     *InvoiceStatus `json:"status,omitempty" validate:"omitempty,oneof=PENDING PAID OVERDUE"`
	PaymentURL *string        `json:"payment_url,omitempty" validate:"omitempty,url"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	StudentID string
	Status    InvoiceStatus
	Month     int
	Year      int
	Page      int
	PageSize  int
}
