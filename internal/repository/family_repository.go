package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mediare/family-trust-api/internal/models"
)

// liveMembership joins a membership edge to a live principal and a live family.
// Any tombstone on either side revokes the edge.
const liveMembership = `family_members fm
JOIN users u ON u.id = fm.user_id AND u.deleted_at IS NULL
JOIN family_units f ON f.id = fm.family_unit_id AND f.deleted_at IS NULL`

// FamilyRepository answers membership questions and loads family-scoped people.
type FamilyRepository struct {
	db *sqlx.DB
}

// NewFamilyRepository constructs the repository.
func NewFamilyRepository(db *sqlx.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// MemberRole returns the principal's role in the family. A missing or revoked
// edge yields sql.ErrNoRows (wrapped).
func (r *FamilyRepository) MemberRole(ctx context.Context, userID, familyID string) (models.MemberRole, error) {
	query := `SELECT fm.role FROM ` + liveMembership + `
WHERE fm.user_id = $1 AND fm.family_unit_id = $2 AND fm.deleted_at IS NULL LIMIT 1`
	var role models.MemberRole
	if err := r.db.GetContext(ctx, &role, query, userID, familyID); err != nil {
		return "", fmt.Errorf("membership role: %w", err)
	}
	return role, nil
}

// ListMemberships returns every live family the principal belongs to.
func (r *FamilyRepository) ListMemberships(ctx context.Context, userID string) ([]models.FamilyMembership, error) {
	query := `SELECT f.id AS family_unit_id, f.name AS family_name, f.mode, fm.role,
COALESCE(u.active_family_id = f.id, FALSE) AS active
FROM ` + liveMembership + `
WHERE fm.user_id = $1 AND fm.deleted_at IS NULL
ORDER BY f.name ASC`
	var memberships []models.FamilyMembership
	if err := r.db.SelectContext(ctx, &memberships, query, userID); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return memberships, nil
}

// ListRecipients returns the live members of a family other than exclude.
func (r *FamilyRepository) ListRecipients(ctx context.Context, familyID, exclude string) ([]models.Recipient, error) {
	query := `SELECT u.id AS user_id, u.suppression_active FROM ` + liveMembership + `
WHERE fm.family_unit_id = $1 AND fm.deleted_at IS NULL AND u.id <> $2
ORDER BY u.id ASC`
	var recipients []models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, familyID, exclude); err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return recipients, nil
}

// GetChild loads a live child profile.
func (r *FamilyRepository) GetChild(ctx context.Context, childID string) (*models.Child, error) {
	const query = `SELECT id, family_unit_id, name, birth_date, created_at, deleted_at FROM children WHERE id = $1 AND deleted_at IS NULL`
	var child models.Child
	if err := r.db.GetContext(ctx, &child, query, childID); err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return &child, nil
}

// ListChildren returns the live children of a family.
func (r *FamilyRepository) ListChildren(ctx context.Context, familyID string) ([]models.Child, error) {
	const query = `SELECT id, family_unit_id, name, birth_date, created_at, deleted_at FROM children WHERE family_unit_id = $1 AND deleted_at IS NULL ORDER BY name ASC`
	var children []models.Child
	if err := r.db.SelectContext(ctx, &children, query, familyID); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}
