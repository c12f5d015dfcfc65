package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/dto"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type invoiceService interface {
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateInvoiceRequest) (*models.Invoice, error)
	Update(ctx context.Context, id string, req dto.UpdateInvoiceRequest) (*models.Invoice, error)
	Delete(ctx context.Context, id string) error
}

// InvoiceHandler exposes monthly invoices.
type InvoiceHandler struct {
	invoices invoiceService
}

// NewInvoiceHandler constructs InvoiceHandler.
func NewInvoiceHandler(invoices invoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// List godoc
// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Param studentId query string false "Student"
// @Param status query string false "PENDING, PAID or OVERDUE"
// @Param month query int false "Month"
// @Param year query int false "Year"
// @Success 200 {object} response.Envelope
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	filter := models.InvoiceFilter{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		Status:    models.InvoiceStatus(strings.ToUpper(c.Query("status"))),
		Page:      page,
		PageSize:  size,
	}
	filter.Month, _ = strconv.Atoi(c.Query("month"))
	filter.Year, _ = strconv.Atoi(c.Query("year"))

	items, pagination, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Create godoc
// @Summary Create invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param payload body dto.CreateInvoiceRequest true "Invoice"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoices.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// Update godoc
// @Summary Update invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body dto.UpdateInvoiceRequest true "Invoice"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	var req dto.UpdateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoices.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Delete godoc
// @Summary Delete invoice
// @Tags Invoices
// @Param id path string true "Invoice ID"
// @Success 204
// @Router /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c *gin.Context) {
	if err := h.invoices.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
