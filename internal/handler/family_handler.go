package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	"github.com/mediare/family-trust-api/pkg/response"
)

type familyService interface {
	ListMemberships(ctx context.Context, principalID string) ([]models.FamilyMembership, error)
	Switch(ctx context.Context, principalID string, req dto.SwitchFamilyRequest) error
	SetSuppression(ctx context.Context, principalID string, req dto.SuppressionRequest) (*dto.SuppressionResult, error)
	ListChildren(ctx context.Context, principalID, familyID string) ([]models.Child, error)
}

// FamilyHandler exposes family membership endpoints.
type FamilyHandler struct {
	service familyService
}

// NewFamilyHandler constructs the handler.
func NewFamilyHandler(svc familyService) *FamilyHandler {
	return &FamilyHandler{service: svc}
}

// List godoc
// @Summary List my families
// @Tags Families
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /families [get]
func (h *FamilyHandler) List(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	items, err := h.service.ListMemberships(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Switch godoc
// @Summary Switch active family
// @Tags Families
// @Accept json
// @Param payload body dto.SwitchFamilyRequest true "Target family"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /families/switch [post]
func (h *FamilyHandler) Switch(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	var req dto.SwitchFamilyRequest
	if !bindJSON(c, &req, "invalid switch payload") {
		return
	}
	if err := h.service.Switch(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Children godoc
// @Summary List children of a family
// @Tags Families
// @Produce json
// @Param familyId path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /families/{familyId}/children [get]
func (h *FamilyHandler) Children(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	items, err := h.service.ListChildren(c.Request.Context(), claims.UserID, c.Param("familyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Suppression godoc
// @Summary Toggle notification suppression
// @Description Suppressed principals receive no routine notifications; emergencies follow the configured policy
// @Tags Families
// @Accept json
// @Produce json
// @Param payload body dto.SuppressionRequest true "Suppression flag"
// @Success 200 {object} response.Envelope
// @Router /me/suppression [put]
func (h *FamilyHandler) Suppression(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	var req dto.SuppressionRequest
	if !bindJSON(c, &req, "invalid suppression payload") {
		return
	}
	res, err := h.service.SetSuppression(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
