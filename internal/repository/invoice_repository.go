package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

const invoiceColumns = "id, student_id, month, year, amount, due_date, status, payment_url, created_at, updated_at"

// InvoiceRepository persists monthly invoices.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts an invoice.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	if invoice.Status == "" {
		invoice.Status = models.InvoicePending
	}
	const query = `INSERT INTO invoices (id, student_id, month, year, amount, due_date, status, payment_url, created_at, updated_at)
        VALUES (:id, :student_id, :month, :year, :amount, :due_date, :status, :payment_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// FindByID loads an invoice.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, "SELECT "+invoiceColumns+" FROM invoices WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Exists reports whether the student already has an invoice for the period.
func (r *InvoiceRepository) Exists(ctx context.Context, studentID string, month, year int) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM invoices WHERE student_id = $1 AND month = $2 AND year = $3 LIMIT 1", studentID, month, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check invoice period: %w", err)
	}
	return true, nil
}

// List returns invoices matching the filter.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	var where whereBuilder
	if filter.StudentID != "" {
		where.add("student_id = $%d", filter.StudentID)
	}
	if filter.Status != "" {
		where.add("status = $%d", filter.Status)
	}
	if filter.Month > 0 {
		where.add("month = $%d", filter.Month)
	}
	if filter.Year > 0 {
		where.add("year = $%d", filter.Year)
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM invoices %s ORDER BY year DESC, month DESC LIMIT %d OFFSET %d", invoiceColumns, where.clause(), limit, offset)
	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM invoices "+where.clause(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// Update applies the non-nil fields of patch.
func (r *InvoiceRepository) Update(ctx context.Context, id string, patch models.InvoicePatch) (*models.Invoice, error) {
	var set setBuilder
	if patch.Amount != nil {
		set.add("amount", *patch.Amount)
	}
	if patch.DueDate != nil {
		set.add("due_date", *patch.DueDate)
	}
	if patch.Status != nil {
		set.add("status", *patch.Status)
	}
	if patch.PaymentURL != nil {
		set.add("payment_url", *patch.PaymentURL)
	}
	set.add("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE invoices SET %s WHERE id = %s RETURNING %s", set.clause(), set.arg(id), invoiceColumns)
	var invoice models.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, set.args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	return &invoice, nil
}

// Delete removes an invoice.
func (r *InvoiceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM invoices WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	return expectAffected(result, "delete invoice")
}

// MarkOverdue flags pending invoices due before asOf and returns how many changed.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE invoices SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $4",
		models.InvoiceOverdue, time.Now().UTC(), models.InvoicePending, asOf)
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue rows: %w", err)
	}
	return rows, nil
}
