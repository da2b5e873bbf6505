package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

type familyDirectory interface {
	ListMemberships(ctx context.Context, userID string) ([]models.FamilyMembership, error)
	ListChildren(ctx context.Context, familyID string) ([]models.Child, error)
}

type principalSettings interface {
	SetActiveFamily(ctx context.Context, userID, familyID string) error
	SetSuppression(ctx context.Context, userID string, active bool) error
}

// FamilyService exposes the principal's memberships and per-user settings.
type FamilyService struct {
	families  familyDirectory
	users     principalSettings
	guard     familyAuthorizer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFamilyService constructs the service.
func NewFamilyService(families familyDirectory, users principalSettings, guard familyAuthorizer, validate *validator.Validate, logger *zap.Logger) *FamilyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FamilyService{families: families, users: users, guard: guard, validator: validate, logger: logger}
}

// ListMemberships returns every live family of the principal.
func (s *FamilyService) ListMemberships(ctx context.Context, principalID string) ([]models.FamilyMembership, error) {
	items, err := s.families.ListMemberships(ctx, principalID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list families")
	}
	if items == nil {
		items = []models.FamilyMembership{}
	}
	return items, nil
}

// Switch makes familyID the principal's active family. Only a live
// membership can become active.
func (s *FamilyService) Switch(ctx context.Context, principalID string, req dto.SwitchFamilyRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid family switch payload")
	}
	if err := s.users.SetActiveFamily(ctx, principalID, req.FamilyUnitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errFamilyAccessDenied
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to switch family")
	}
	s.logger.Info("active family switched", zap.String("principal_id", principalID), zap.String("family_unit_id", req.FamilyUnitID))
	return nil
}

// SetSuppression toggles do-not-disturb for the principal.
func (s *FamilyService) SetSuppression(ctx context.Context, principalID string, req dto.SuppressionRequest) (*dto.SuppressionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid suppression payload")
	}
	if err := s.users.SetSuppression(ctx, principalID, *req.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUnauthorized
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update suppression")
	}
	return &dto.SuppressionResult{Active: *req.Active}, nil
}

// ListChildren returns the family's children.
func (s *FamilyService) ListChildren(ctx context.Context, principalID, familyID string) ([]models.Child, error) {
	if err := s.guard.Authorize(ctx, principalID, familyID); err != nil {
		return nil, err
	}
	children, err := s.families.ListChildren(ctx, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list children")
	}
	if children == nil {
		children = []models.Child{}
	}
	return children, nil
}
