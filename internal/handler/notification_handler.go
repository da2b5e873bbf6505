package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	"github.com/mediare/family-trust-api/pkg/response"
)

type notificationService interface {
	ListRecent(ctx context.Context, principalID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, principalID, notificationID string) error
	Broadcast(ctx context.Context, principal *models.JWTClaims, req dto.EmergencyRequest) (*dto.EmergencyResult, error)
}

// NotificationHandler exposes the principal's inbox and emergency alerts.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary Latest notifications in the active family
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	items, err := h.service.ListRecent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags Notifications
// @Param notificationId path string true "Notification ID"
// @Success 204
// @Router /notifications/{notificationId}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), claims.UserID, c.Param("notificationId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Emergency godoc
// @Summary Broadcast an emergency alert to the active family
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body dto.EmergencyRequest true "Alert"
// @Success 202 {object} response.Envelope
// @Router /notifications/emergency [post]
func (h *NotificationHandler) Emergency(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	var req dto.EmergencyRequest
	if !bindJSON(c, &req, "invalid emergency payload") {
		return
	}
	res, err := h.service.Broadcast(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, res)
}
