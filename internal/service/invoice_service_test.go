package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/dto"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type mockInvoiceRepo struct {
	invoices map[string]models.Invoice
	asOf     time.Time
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error {
	invoice.ID = "inv-1"
	m.invoices[invoice.ID] = *invoice
	return nil
}

func (m *mockInvoiceRepo) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &inv, nil
}

func (m *mockInvoiceRepo) Exists(ctx context.Context, studentID string, month, year int) (bool, error) {
	for _, inv := range m.invoices {
		if inv.StudentID == studentID && inv.Month == month && inv.Year == year {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInvoiceRepo) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	var out []models.Invoice
	for _, inv := range m.invoices {
		out = append(out, inv)
	}
	return out, len(out), nil
}

func (m *mockInvoiceRepo) Update(ctx context.Context, id string, patch models.InvoicePatch) (*models.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if patch.Status != nil {
		inv.Status = *patch.Status
	}
	if patch.Amount != nil {
		inv.Amount = *patch.Amount
	}
	m.invoices[id] = inv
	return &inv, nil
}

func (m *mockInvoiceRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.invoices[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.invoices, id)
	return nil
}

func (m *mockInvoiceRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	m.asOf = asOf
	var n int64
	for id, inv := range m.invoices {
		if inv.Status == models.InvoicePending && inv.DueDate.Before(asOf) {
			inv.Status = models.InvoiceOverdue
			m.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func newInvoiceFixture(t *testing.T) (*mockInvoiceRepo, *InvoiceService, *recordingNotifier) {
	t.Helper()
	store := newMemStore()
	store.addStudent(models.Student{ID: "s1", Name: "Ana", Class: "7A"})
	store.addGuardian("g1", "Maria", "s1")
	repo := &mockInvoiceRepo{invoices: map[string]models.Invoice{}}
	notifier := &recordingNotifier{}
	svc := NewInvoiceService(repo, memStudents{store}, NewUserGuardianResolver(memUsers{store}, nil), notifier, nil,
		clock.NewFixed(time.Date(2024, 5, 10, 9, 0, 0, 0, schoolZone)), nil, zap.NewNop())
	return repo, svc, notifier
}

func TestInvoiceCreateNotifiesGuardian(t *testing.T) {
	repo, svc, notifier := newInvoiceFixture(t)

	inv, err := svc.Create(context.Background(), testActor, dto.CreateInvoiceRequest{
		StudentID: "s1", Month: 5, Year: 2024, Amount: 350, DueDate: "2024-05-15",
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePending, inv.Status)
	assert.Len(t, repo.invoices, 1)

	sent := notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "g1", sent[0].UserID)
	assert.Contains(t, sent[0].Description, "R$ 350.00")

	_, err = svc.Create(context.Background(), testActor, dto.CreateInvoiceRequest{
		StudentID: "s1", Month: 5, Year: 2024, Amount: 10, DueDate: "2024-05-15",
	})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInvoiceCreateValidation(t *testing.T) {
	_, svc, _ := newInvoiceFixture(t)
	_, err := svc.Create(context.Background(), testActor, dto.CreateInvoiceRequest{StudentID: "s1", Month: 13, Year: 2024, Amount: 1, DueDate: "2024-05-15"})
	assert.True(t, appErrors.IsValidation(err))

	_, err = svc.Create(context.Background(), testActor, dto.CreateInvoiceRequest{StudentID: "nobody", Month: 1, Year: 2024, Amount: 1, DueDate: "2024-05-15"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestInvoiceSweepOverdue(t *testing.T) {
	repo, svc, _ := newInvoiceFixture(t)
	repo.invoices["a"] = models.Invoice{ID: "a", Status: models.InvoicePending, DueDate: time.Date(2024, 5, 9, 0, 0, 0, 0, schoolZone)}
	repo.invoices["b"] = models.Invoice{ID: "b", Status: models.InvoicePending, DueDate: time.Date(2024, 5, 10, 0, 0, 0, 0, schoolZone)}
	repo.invoices["c"] = models.Invoice{ID: "c", Status: models.InvoicePaid, DueDate: time.Date(2024, 4, 1, 0, 0, 0, 0, schoolZone)}

	n, err := svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.InvoiceOverdue, repo.invoices["a"].Status)
	assert.Equal(t, models.InvoicePending, repo.invoices["b"].Status)
	assert.Equal(t, "2024-05-10", repo.asOf.Format(clock.DateLayout))
}

func TestInvoiceUpdateAndDelete(t *testing.T) {
	repo, svc, _ := newInvoiceFixture(t)
	repo.invoices["a"] = models.Invoice{ID: "a", Status: models.InvoicePending}
	paid := models.InvoicePaid

	inv, err := svc.Update(context.Background(), "a", dto.UpdateInvoiceRequest{Status: &paid})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, inv.Status)

	require.NoError(t, svc.Delete(context.Background(), "a"))
	err = svc.Delete(context.Background(), "a")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
