package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/dto"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type transferService interface {
	Transfer(ctx context.Context, actor models.Actor, req dto.TransferRequest) (*models.TransferOutcome, error)
	ListTransfers(ctx context.Context, filter models.TransferFilter) ([]models.TransferRecord, *models.Pagination, error)
	DeleteTransfer(ctx context.Context, actor models.Actor, id string) error
}

// TransferHandler exposes student transfers between classes.
type TransferHandler struct {
	transfers transferService
}

// NewTransferHandler constructs TransferHandler.
func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// Create godoc
// @Summary Transfer a student
// @Description Runs or resumes a transfer. Resubmitting the same request after a failure finishes it.
// @Description A student already in to_class is treated as a resumed transfer and gets a history entry if none matches.
// @Tags Transfers
// @Accept json
// @Produce json
// @Param payload body dto.TransferRequest true "Transfer"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /transfers [post]
func (h *TransferHandler) Create(c *gin.Context) {
	h.run(c, "")
}

// Update godoc
// @Summary Correct a transfer record
// @Description Rewrites the record and applies the new class pair. The previous pair is not reverted.
// @Description student_id must name the student the record belongs to.
// @Tags Transfers
// @Accept json
// @Produce json
// @Param id path string true "Transfer record ID"
// @Param payload body dto.TransferRequest true "Transfer"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transfers/{id} [put]
func (h *TransferHandler) Update(c *gin.Context) {
	h.run(c, c.Param("id"))
}

func (h *TransferHandler) run(c *gin.Context, recordID string) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	req.RecordID = recordID
	outcome, err := h.transfers.Transfer(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// List godoc
// @Summary List transfer history
// @Tags Transfers
// @Produce json
// @Param studentId query string false "Student"
// @Param class query string false "Origin or destination class"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /transfers [get]
func (h *TransferHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	filter := models.TransferFilter{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		Class:     strings.TrimSpace(c.Query("class")),
		Page:      page,
		PageSize:  size,
	}
	records, pagination, err := h.transfers.ListTransfers(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Delete godoc
// @Summary Delete a transfer record
// @Description Removes history only; rosters and the student are left as they are.
// @Tags Transfers
// @Param id path string true "Transfer record ID"
// @Success 204
// @Router /transfers/{id} [delete]
func (h *TransferHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.transfers.DeleteTransfer(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
