package models

import "time"

// PointDelta is one append-only ledger entry. Sequence is dense per child.
type PointDelta struct {
	ID           string    `db:"id" json:"id" msgpack:"id"`
	ChildID      string    `db:"child_id" json:"child_id" msgpack:"child_id"`
	FamilyUnitID string    `db:"family_unit_id" json:"family_unit_id" msgpack:"family_unit_id"`
	Sequence     int64     `db:"sequence" json:"sequence" msgpack:"sequence"`
	Amount       int       `db:"amount" json:"amount" msgpack:"amount"`
	Reason       string    `db:"reason" json:"reason" msgpack:"reason"`
	CreatedAt    time.Time `db:"created_at" json:"created_at" msgpack:"created_at"`
}

// LevelAggregate caches the fold of a child's ledger.
type LevelAggregate struct {
	ChildID      string    `db:"child_id" json:"child_id" msgpack:"child_id"`
	FamilyUnitID string    `db:"family_unit_id" json:"family_unit_id" msgpack:"family_unit_id"`
	Level        int       `db:"level" json:"level" msgpack:"level"`
	Points       int       `db:"points" json:"points" msgpack:"points"`
	LastSequence int64     `db:"last_sequence" json:"last_sequence" msgpack:"last_sequence"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at" msgpack:"updated_at"`
}

// TaskStatus tracks a task through completion.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// Task awards its points to the child once, on completion.
type Task struct {
	ID           string     `db:"id" json:"id"`
	FamilyUnitID string     `db:"family_unit_id" json:"family_unit_id"`
	ChildID      string     `db:"child_id" json:"child_id"`
	Name         string     `db:"name" json:"name"`
	Description  string     `db:"description" json:"description"`
	Points       int        `db:"points" json:"points"`
	Status       TaskStatus `db:"status" json:"status"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Reward is a family catalogue item redeemable for points.
type Reward struct {
	ID             string    `db:"id" json:"id"`
	FamilyUnitID   string    `db:"family_unit_id" json:"family_unit_id"`
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	PointsRequired int       `db:"points_required" json:"points_required"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
