package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type activityLog interface {
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, error)
}

// ActivityHandler exposes the administrative activity log.
type ActivityHandler struct {
	log activityLog
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(log activityLog) *ActivityHandler {
	return &ActivityHandler{log: log}
}

// List godoc
// @Summary List recent activity
// @Tags Activity
// @Produce json
// @Param userId query string false "Actor"
// @Param action query string false "Action code"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /activity [get]
func (h *ActivityHandler) List(c *gin.Context) {
	filter := models.ActivityFilter{
		UserID: strings.TrimSpace(c.Query("userId")),
		Action: strings.ToUpper(strings.TrimSpace(c.Query("action"))),
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	entries, err := h.log.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
