package models

import "time"

// MemberRole is a principal's role inside one family unit.
type MemberRole string

const (
	RoleParent   MemberRole = "parent"
	RoleChild    MemberRole = "child"
	RoleMediator MemberRole = "mediator"
)

// FamilyUnit is the tenant boundary. Every family-scoped row carries its id.
type FamilyUnit struct {
	ID            string     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Mode          string     `db:"mode" json:"mode"`
	ValuesProfile *string    `db:"values_profile" json:"values_profile,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	DeletedAt     *time.Time `db:"deleted_at" json:"-"`
}

// Membership links a principal to a family unit.
type Membership struct {
	ID           string     `db:"id" json:"id"`
	FamilyUnitID string     `db:"family_unit_id" json:"family_unit_id"`
	UserID       string     `db:"user_id" json:"user_id"`
	Role         MemberRole `db:"role" json:"role"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// FamilyMembership is a membership joined with its family, used for listings.
type FamilyMembership struct {
	FamilyUnitID string     `db:"family_unit_id" json:"family_unit_id"`
	FamilyName   string     `db:"family_name" json:"family_name"`
	Mode         string     `db:"mode" json:"mode"`
	Role         MemberRole `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
}

// Child is a family-scoped participant whose progress lives in the ledger.
type Child struct {
	ID           string     `db:"id" json:"id"`
	FamilyUnitID string     `db:"family_unit_id" json:"family_unit_id"`
	Name         string     `db:"name" json:"name"`
	BirthDate    *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}
