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

type membershipRepository interface {
	MemberRole(ctx context.Context, userID, familyID string) (models.MemberRole, error)
}

type principalRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// familyAuthorizer is the slice of the guard the engines depend on.
type familyAuthorizer interface {
	Authorize(ctx context.Context, principalID, familyID string) error
	AuthorizeEntity(ctx context.Context, principalID, claimedFamilyID, entityFamilyID string) error
}

var errFamilyAccessDenied = appErrors.Clone(appErrors.ErrForbidden, "access to this family is denied")

// AccessGuard decides whether a principal may act inside a family unit.
type AccessGuard struct {
	members membershipRepository
	users   principalRepository
	logger  *zap.Logger
}

// NewAccessGuard constructs the guard.
func NewAccessGuard(members membershipRepository, users principalRepository, logger *zap.Logger) *AccessGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessGuard{members: members, users: users, logger: logger}
}

// Authorize returns nil when the principal holds a live membership in the
// family. An unknown family and a non-member are reported identically.
func (g *AccessGuard) Authorize(ctx context.Context, principalID, familyID string) error {
	_, err := g.Role(ctx, principalID, familyID)
	return err
}

// Role resolves the principal's role, applying the same checks as Authorize.
func (g *AccessGuard) Role(ctx context.Context, principalID, familyID string) (models.MemberRole, error) {
	if principalID == "" {
		return "", appErrors.ErrUnauthorized
	}
	if _, err := uuid.Parse(familyID); err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid family id")
	}

	role, err := g.members.MemberRole(ctx, principalID, familyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			g.logger.Info("family access denied", zap.String("principal_id", principalID), zap.String("family_unit_id", familyID))
			return "", errFamilyAccessDenied
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	return role, nil
}

// AuthorizeRole additionally requires one of the given roles.
func (g *AccessGuard) AuthorizeRole(ctx context.Context, principalID, familyID string, roles ...models.MemberRole) error {
	role, err := g.Role(ctx, principalID, familyID)
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return nil
	}
	for _, allowed := range roles {
		if role == allowed {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "role not permitted for this action")
}

// AuthorizeEntity checks access to an entity the caller addressed under
// claimedFamilyID. A claim that disagrees with the entity's own family is
// refused before any membership lookup; an empty claim defers to the entity.
func (g *AccessGuard) AuthorizeEntity(ctx context.Context, principalID, claimedFamilyID, entityFamilyID string) error {
	if claimedFamilyID != "" && claimedFamilyID != entityFamilyID {
		g.logger.Warn("family claim mismatch",
			zap.String("principal_id", principalID),
			zap.String("claimed_family_id", claimedFamilyID),
			zap.String("entity_family_id", entityFamilyID))
		return errFamilyAccessDenied
	}
	return g.Authorize(ctx, principalID, entityFamilyID)
}

// ActiveFamily returns the principal's active family after re-authorizing it,
// so a revoked membership cannot linger as the active one.
func (g *AccessGuard) ActiveFamily(ctx context.Context, principalID string) (string, error) {
	user, err := g.users.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.ErrUnauthorized
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load principal")
	}
	if user.Deleted() {
		return "", appErrors.ErrUnauthorized
	}
	if user.ActiveFamilyID == nil || *user.ActiveFamilyID == "" {
		return "", appErrors.Clone(appErrors.ErrForbidden, "no active family selected")
	}
	if err := g.Authorize(ctx, principalID, *user.ActiveFamilyID); err != nil {
		return "", err
	}
	return *user.ActiveFamilyID, nil
}
