package models

import "time"

// User is an authenticated principal. Users are never hard-deleted; a set
// DeletedAt tombstones the account and revokes every membership edge.
type User struct {
	ID                string     `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	FullName          string     `db:"full_name" json:"full_name"`
	ActiveFamilyID    *string    `db:"active_family_id" json:"active_family_id,omitempty"`
	SuppressionActive bool       `db:"suppression_active" json:"suppression_active"`
	LastLogin         *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt         *time.Time `db:"deleted_at" json:"-"`
}

// Deleted reports whether the principal has been tombstoned.
func (u *User) Deleted() bool {
	return u != nil && u.DeletedAt != nil
}
