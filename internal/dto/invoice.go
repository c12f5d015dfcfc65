package dto

import "github.com/noah-isme/sma-ledger-api/internal/models"

// CreateInvoiceRequest bills a student for one month.
type CreateInvoiceRequest struct {
	StudentID  string  `json:"student_id" validate:"required"`
	Month      int     `json:"month" validate:"required,min=1,max=12"`
	Year       int     `json:"year" validate:"required,min=2000"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	DueDate    string  `json:"due_date" validate:"required"`
	PaymentURL *string `json:"payment_url" validate:"omitempty,url"`
}

// UpdateInvoiceRequest changes amount, due date, status or payment link.
type UpdateInvoiceRequest struct {
	Amount     *float64              `json:"amount" validate:"omitempty,gt=0"`
	DueDate    *string               `json:"due_date"`
	Status     *models.InvoiceStatus `json:"status" validate:"omitempty,oneof=PENDING PAID OVERDUE"`
	PaymentURL *string               `json:"payment_url" validate:"omitempty,url"`
}
