package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mediare/family-trust-api/internal/models"
	"github.com/mediare/family-trust-api/pkg/response"
)

type budgetService interface {
	List(ctx context.Context, principalID, familyID string) ([]models.Budget, error)
	Get(ctx context.Context, principalID, claimedFamilyID, budgetID string) (*models.Budget, error)
}

// BudgetHandler exposes family expense proposals.
type BudgetHandler struct {
	service budgetService
}

// NewBudgetHandler constructs the handler.
func NewBudgetHandler(svc budgetService) *BudgetHandler {
	return &BudgetHandler{service: svc}
}

// List godoc
// @Summary List budgets of a family
// @Tags Budgets
// @Produce json
// @Param family_unit_id query string true "Family ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /budgets [get]
func (h *BudgetHandler) List(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	items, err := h.service.List(c.Request.Context(), claims.UserID, c.Query("family_unit_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get a budget
// @Tags Budgets
// @Produce json
// @Param budgetId path string true "Budget ID"
// @Param family_unit_id query string false "Claimed family"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /budgets/{budgetId} [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	budget, err := h.service.Get(c.Request.Context(), claims.UserID, c.Query("family_unit_id"), c.Param("budgetId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, budget, nil)
}
