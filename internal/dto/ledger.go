package dto

import (
	"time"

	"github.com/mediare/family-trust-api/internal/models"
)

// AwardRequest grants points to a child.
type AwardRequest struct {
	Amount int    `json:"amount" validate:"gt=0"`
	Reason string `json:"reason" validate:"required,max=200"`
}

// AwardResult reports the aggregate after an award.
type AwardResult struct {
	ChildID      string `json:"child_id"`
	Sequence     int64  `json:"sequence"`
	Points       int    `json:"points"`
	Level        int    `json:"level"`
	LeveledUp    bool   `json:"leveled_up"`
	LevelsGained int    `json:"levels_gained"`
}

// RedeemResult reports the aggregate after a redemption.
type RedeemResult struct {
	ChildID  string `json:"child_id"`
	Sequence int64  `json:"sequence"`
	Cost     int    `json:"cost"`
	Points   int    `json:"points"`
	Level    int    `json:"level"`
}

// Progress is the read model for a child's level bar. NextLevelPoints is the
// level threshold; PointsToNext is what remains until it.
type Progress struct {
	ChildID         string `json:"child_id"`
	Level           int    `json:"level"`
	Points          int    `json:"points"`
	NextLevelPoints int    `json:"next_level_points"`
	PointsToNext    int    `json:"points_to_next"`
}

// LedgerVerification compares the stored aggregate with a replay of the ledger.
type LedgerVerification struct {
	ChildID      string `json:"child_id"`
	Deltas       int    `json:"deltas"`
	StoredLevel  int    `json:"stored_level"`
	StoredPoints int    `json:"stored_points"`
	ReplayLevel  int    `json:"replay_level"`
	ReplayPoints int    `json:"replay_points"`
	Consistent   bool   `json:"consistent"`
}

// CreateTaskRequest defines a task for a child of the family.
type CreateTaskRequest struct {
	ChildID     string `json:"child_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
	Points      int    `json:"points" validate:"gt=0,lte=10000"`
}

// TaskCompletion pairs a completed task with the resulting award.
type TaskCompletion struct {
	Task  models.Task `json:"task"`
	Award AwardResult `json:"award"`
}

// CreateRewardRequest adds a reward to the family catalogue.
type CreateRewardRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	Description    string `json:"description" validate:"max=500"`
	PointsRequired int    `json:"points_required" validate:"gt=0,lte=100000"`
}

// RedeemRewardRequest names the child spending points.
type RedeemRewardRequest struct {
	ChildID string `json:"child_id" validate:"required,uuid"`
}

// StatementFormat is the rendering of a ledger statement.
type StatementFormat string

const (
	StatementCSV StatementFormat = "csv"
	StatementPDF StatementFormat = "pdf"
)

// StatementResult points at a rendered statement.
type StatementResult struct {
	Format    StatementFormat `json:"format"`
	URL       string          `json:"url"`
	ExpiresAt time.Time       `json:"expires_at"`
}
