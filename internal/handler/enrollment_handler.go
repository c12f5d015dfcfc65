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

type enrollmentService interface {
	Submit(ctx context.Context, req dto.SubmitEnrollmentRequest) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error)
	Decide(ctx context.Context, actor models.Actor, id string, req dto.EnrollmentDecisionRequest) (*dto.EnrollmentDecisionResponse, error)
}

// EnrollmentHandler exposes enrollment requests and their decision.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Submit godoc
// @Summary Submit an enrollment request
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.SubmitEnrollmentRequest true "Enrollment"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Submit(c *gin.Context) {
	var req dto.SubmitEnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// List godoc
// @Summary List enrollment requests
// @Tags Enrollments
// @Produce json
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param search query string false "Student or guardian name"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	filter := models.EnrollmentFilter{
		Status:   models.EnrollmentStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     page,
		PageSize: size,
	}
	items, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Decide godoc
// @Summary Approve or reject an enrollment
// @Description Approval creates the student and places them on the desired class before the request is marked approved.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.EnrollmentDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/decision [post]
func (h *EnrollmentHandler) Decide(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.EnrollmentDecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.enrollments.Decide(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
