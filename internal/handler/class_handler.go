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

type classService interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, bool, error)
	Get(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, req dto.CreateClassRequest) (*models.Class, error)
	Update(ctx context.Context, id string, req dto.UpdateClassRequest) (*models.Class, error)
	Delete(ctx context.Context, id string) error
}

// ClassHandler exposes class endpoints.
type ClassHandler struct {
	classes classService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes classService) *ClassHandler {
	return &ClassHandler{classes: classes}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param search query string false "Search by name"
// @Param teacherId query string false "Filter by teacher"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	filter := models.ClassFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		TeacherID: c.Query("teacherId"),
		Page:      page,
		PageSize:  size,
	}
	classes, pagination, hit, err := h.classes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, classes, pagination, hit)
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.classes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body dto.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req dto.CreateClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.classes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.UpdateClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req dto.UpdateClassRequest
	if !bindJSON(c, &req) {
		return
	}
	class, err := h.classes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete an empty class
// @Tags Classes
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
