package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

type budgetRepository interface {
	ListByFamily(ctx context.Context, familyID string) ([]models.Budget, error)
	GetByID(ctx context.Context, id string) (*models.Budget, error)
}

// BudgetService serves family expense proposals. Reads are either fully
// authorized or refused; results are never silently filtered.
type BudgetService struct {
	repo   budgetRepository
	guard  familyAuthorizer
	logger *zap.Logger
}

// NewBudgetService constructs the service.
func NewBudgetService(repo budgetRepository, guard familyAuthorizer, logger *zap.Logger) *BudgetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BudgetService{repo: repo, guard: guard, logger: logger}
}

// List returns every budget of familyID.
func (s *BudgetService) List(ctx context.Context, principalID, familyID string) ([]models.Budget, error) {
	if err := s.guard.Authorize(ctx, principalID, familyID); err != nil {
		return nil, err
	}
	budgets, err := s.repo.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list budgets")
	}
	if budgets == nil {
		budgets = []models.Budget{}
	}
	return budgets, nil
}

// Get returns one budget. claimedFamilyID, when given, must match the
// budget's own family.
func (s *BudgetService) Get(ctx context.Context, principalID, claimedFamilyID, budgetID string) (*models.Budget, error) {
	if _, err := uuid.Parse(budgetID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid budget id")
	}
	budget, err := s.repo.GetByID(ctx, budgetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown ids are indistinguishable from foreign ones.
			return nil, errFamilyAccessDenied
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load budget")
	}
	if err := s.guard.AuthorizeEntity(ctx, principalID, claimedFamilyID, budget.FamilyUnitID); err != nil {
		return nil, err
	}
	return budget, nil
}
