package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/response"
)

type notificationInbox interface {
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// NotificationHandler exposes the caller's notification inbox.
type NotificationHandler struct {
	inbox notificationInbox
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(inbox notificationInbox) *NotificationHandler {
	return &NotificationHandler{inbox: inbox}
}

// List godoc
// @Summary List my notifications
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.inbox.ListForUser(c.Request.Context(), actor.UserID, c.Query("unread") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.inbox.MarkRead(c.Request.Context(), c.Param("id"), actor.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
