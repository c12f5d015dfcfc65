package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/dto"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type invoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	Exists(ctx context.Context, studentID string, month, year int) (bool, error)
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error)
	Update(ctx context.Context, id string, patch models.InvoicePatch) (*models.Invoice, error)
	Delete(ctx context.Context, id string) error
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type invoiceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// InvoiceService manages monthly invoices.
type InvoiceService struct {
	repo      invoiceRepository
	students  invoiceStudentReader
	guardians GuardianResolver
	notifier  Notifier
	activity  ActivityRecorder
	clock     clock.Clock
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInvoiceService constructs the invoice service.
func NewInvoiceService(repo invoiceRepository, students invoiceStudentReader, guardians GuardianResolver, notifier Notifier, activity ActivityRecorder, clk clock.Clock, validate *validator.Validate, logger *zap.Logger) *InvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if activity == nil {
		activity = discardActivity{}
	}
	if clk == nil {
		clk, _ = clock.New("")
	}
	return &InvoiceService{repo: repo, students: students, guardians: guardians, notifier: notifier, activity: activity, clock: clk, validator: validate, logger: logger}
}

// List returns invoices.
func (s *InvoiceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Create bills a student for a month and tells their guardian.
func (s *InvoiceService) Create(ctx context.Context, actor models.Actor, req dto.CreateInvoiceRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}
	due, err := clock.ParseDate(s.clock, req.DueDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "due_date must be YYYY-MM-DD")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exists, err := s.repo.Exists(ctx, req.StudentID, req.Month, req.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check invoice period")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice already exists for this month")
	}

	invoice := &models.Invoice{
		StudentID:  req.StudentID,
		Month:      req.Month,
		Year:       req.Year,
		Amount:     req.Amount,
		DueDate:    due,
		Status:     models.InvoicePending,
		PaymentURL: req.PaymentURL,
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}

	s.activity.Record(ctx, actor, models.ActivityInvoiceCreated, map[string]interface{}{
		"invoice_id": invoice.ID,
		"student":    student.Name,
		"amount":     invoice.Amount,
	})
	s.notifyGuardian(ctx, student, invoice)
	return invoice, nil
}

// Update changes an invoice.
func (s *InvoiceService) Update(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}
	patch := models.InvoicePatch{Amount: req.Amount, Status: req.Status, PaymentURL: req.PaymentURL}
	if req.DueDate != nil {
		due, err := clock.ParseDate(s.clock, *req.DueDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "due_date must be YYYY-MM-DD")
		}
		patch.DueDate = &due
	}
	invoice, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update invoice")
	}
	return invoice, nil
}

// Delete removes an invoice.
func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete invoice")
	}
	return nil
}

// SweepOverdue marks pending invoices due before today as overdue.
func (s *InvoiceService) SweepOverdue(ctx context.Context) (int64, error) {
	today, err := clock.ParseDate(s.clock, clock.Today(s.clock))
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve today")
	}
	n, err := s.repo.MarkOverdue(ctx, today)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark overdue invoices")
	}
	s.logger.Info("overdue sweep finished", zap.Int64("updated", n), zap.String("as_of", today.Format(clock.DateLayout)))
	return n, nil
}

func (s *InvoiceService) notifyGuardian(ctx context.Context, student *models.Student, invoice *models.Invoice) {
	if s.guardians == nil {
		return
	}
	guardian, err := s.guardians.ForStudent(ctx, student.ID)
	if err != nil {
		s.logger.Warn("guardian lookup failed", zap.String("student_id", student.ID), zap.Error(err))
		return
	}
	if guardian == nil {
		return
	}
	s.notifier.Notify(ctx, guardian.ID, "New invoice",
		fmt.Sprintf("A new invoice of R$ %.2f was generated for %s.", invoice.Amount, student.Name))
}
