package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mediare/family-trust-api/internal/models"
)

// BudgetRepository reads family expense proposals.
type BudgetRepository struct {
	db *sqlx.DB
}

// NewBudgetRepository constructs the repository.
func NewBudgetRepository(db *sqlx.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// ListByFamily returns the family's live budgets, newest first.
func (r *BudgetRepository) ListByFamily(ctx context.Context, familyID string) ([]models.Budget, error) {
	const query = `SELECT id, family_unit_id, child_id, description, estimated_value, status, created_at FROM budgets
WHERE family_unit_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	var budgets []models.Budget
	if err := r.db.SelectContext(ctx, &budgets, query, familyID); err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

// GetByID returns a live budget.
func (r *BudgetRepository) GetByID(ctx context.Context, id string) (*models.Budget, error) {
	const query = `SELECT id, family_unit_id, child_id, description, estimated_value, status, created_at FROM budgets WHERE id = $1 AND deleted_at IS NULL`
	var budget models.Budget
	if err := r.db.GetContext(ctx, &budget, query, id); err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return &budget, nil
}
