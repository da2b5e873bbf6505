package models

import "time"

// BudgetStatus tracks a shared-expense proposal.
type BudgetStatus string

const (
	BudgetProposed BudgetStatus = "proposed"
	BudgetApproved BudgetStatus = "approved"
	BudgetRejected BudgetStatus = "rejected"
	BudgetCanceled BudgetStatus = "canceled"
)

// Budget is a family-scoped expense proposal.
type Budget struct {
	ID             string       `db:"id" json:"id"`
	FamilyUnitID   string       `db:"family_unit_id" json:"family_unit_id"`
	ChildID        *string      `db:"child_id" json:"child_id,omitempty"`
	Description    string       `db:"description" json:"description"`
	EstimatedValue float64      `db:"estimated_value" json:"estimated_value"`
	Status         BudgetStatus `db:"status" json:"status"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}
