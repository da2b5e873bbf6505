package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	"github.com/mediare/family-trust-api/internal/repository"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

type ledgerRepository interface {
	Apply(ctx context.Context, childID, familyID string, guard repository.TxGuard, step repository.LedgerStep) (*models.LevelAggregate, *models.PointDelta, error)
	GetAggregate(ctx context.Context, childID string) (*models.LevelAggregate, error)
	ListDeltas(ctx context.Context, childID string) ([]models.PointDelta, error)
}

type childRepository interface {
	GetChild(ctx context.Context, childID string) (*models.Child, error)
}

// LedgerConfig tunes the ledger engine.
type LedgerConfig struct {
	PointsPerLevel int
}

// LedgerService records point deltas and keeps each child's level aggregate
// in step with them. Mutations for one child are serialized by the store.
type LedgerService struct {
	repo      ledgerRepository
	children  childRepository
	guard     familyAuthorizer
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       LedgerConfig
}

// NewLedgerService constructs the ledger engine.
func NewLedgerService(repo ledgerRepository, children childRepository, guard familyAuthorizer, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg LedgerConfig) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.PointsPerLevel <= 0 {
		cfg.PointsPerLevel = DefaultPointsPerLevel
	}
	return &LedgerService{
		repo:      repo,
		children:  children,
		guard:     guard,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Award grants amount points to the child and runs the level-up loop.
func (s *LedgerService) Award(ctx context.Context, childID string, amount int, reason string) (*dto.AwardResult, error) {
	return s.AwardInFamily(ctx, childID, "", amount, reason, nil)
}

// AwardInFamily is Award for callers acting under familyID; the child must
// belong to it. guard runs inside the ledger transaction.
func (s *LedgerService) AwardInFamily(ctx context.Context, childID, familyID string, amount int, reason string, guard repository.TxGuard) (*dto.AwardResult, error) {
	if err := s.validator.Struct(dto.AwardRequest{Amount: amount, Reason: reason}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid award")
	}
	child, err := s.resolveChild(ctx, childID, familyID)
	if err != nil {
		return nil, err
	}

	gained := 0
	agg, delta, err := s.repo.Apply(ctx, child.ID, child.FamilyUnitID, guard, func(cur models.LevelAggregate) (models.LevelAggregate, int, string, error) {
		var next models.LevelAggregate
		next, gained = applyAward(cur, amount, s.cfg.PointsPerLevel)
		return next, amount, reason, nil
	})
	if err != nil {
		s.metrics.RecordLedger("award", "error", 0)
		return nil, s.mapApplyError(err, "failed to award points")
	}
	s.metrics.RecordLedger("award", "ok", gained)
	if gained > 0 {
		s.logger.Info("child leveled up",
			zap.String("child_id", child.ID),
			zap.Int("level", agg.Level),
			zap.Int("levels_gained", gained))
	}

	return &dto.AwardResult{
		ChildID:      child.ID,
		Sequence:     delta.Sequence,
		Points:       agg.Points,
		Level:        agg.Level,
		LeveledUp:    gained > 0,
		LevelsGained: gained,
	}, nil
}

// Redeem spends cost points. An uncovered cost fails with
// ErrInsufficientPoints and writes nothing.
func (s *LedgerService) Redeem(ctx context.Context, childID string, cost int, reason string) (*dto.RedeemResult, error) {
	return s.RedeemInFamily(ctx, childID, "", cost, reason)
}

// RedeemInFamily is Redeem for callers acting under familyID.
func (s *LedgerService) RedeemInFamily(ctx context.Context, childID, familyID string, cost int, reason string) (*dto.RedeemResult, error) {
	if err := s.validator.Struct(dto.AwardRequest{Amount: cost, Reason: reason}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid redemption")
	}
	child, err := s.resolveChild(ctx, childID, familyID)
	if err != nil {
		return nil, err
	}

	agg, delta, err := s.repo.Apply(ctx, child.ID, child.FamilyUnitID, nil, func(cur models.LevelAggregate) (models.LevelAggregate, int, string, error) {
		next, err := applyRedeem(cur, cost)
		if err != nil {
			return cur, 0, "", err
		}
		return next, -cost, reason, nil
	})
	if err != nil {
		if appErrors.Is(err, appErrors.ErrInsufficientPoints) {
			s.metrics.RecordLedger("redeem", "insufficient", 0)
			return nil, err
		}
		s.metrics.RecordLedger("redeem", "error", 0)
		return nil, s.mapApplyError(err, "failed to redeem points")
	}
	s.metrics.RecordLedger("redeem", "ok", 0)

	return &dto.RedeemResult{
		ChildID:  child.ID,
		Sequence: delta.Sequence,
		Cost:     cost,
		Points:   agg.Points,
		Level:    agg.Level,
	}, nil
}

// PointsPerLevel is the balance at which a child levels up.
func (s *LedgerService) PointsPerLevel() int {
	return s.cfg.PointsPerLevel
}

// Progress returns the child's level bar for a family member.
func (s *LedgerService) Progress(ctx context.Context, principalID, childID string) (*dto.Progress, error) {
	child, err := s.authorizedChild(ctx, principalID, childID)
	if err != nil {
		return nil, err
	}

	agg, err := s.repo.GetAggregate(ctx, child.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}
	return &dto.Progress{
		ChildID:         child.ID,
		Level:           agg.Level,
		Points:          agg.Points,
		NextLevelPoints: s.cfg.PointsPerLevel,
		PointsToNext:    s.cfg.PointsPerLevel - agg.Points,
	}, nil
}

// History returns the child's ledger in sequence order.
func (s *LedgerService) History(ctx context.Context, principalID, childID string) ([]models.PointDelta, error) {
	child, err := s.authorizedChild(ctx, principalID, childID)
	if err != nil {
		return nil, err
	}
	deltas, err := s.repo.ListDeltas(ctx, child.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}
	if deltas == nil {
		deltas = []models.PointDelta{}
	}
	return deltas, nil
}

// Verify replays the child's ledger and compares it with the stored aggregate.
func (s *LedgerService) Verify(ctx context.Context, principalID, childID string) (*dto.LedgerVerification, error) {
	child, err := s.authorizedChild(ctx, principalID, childID)
	if err != nil {
		return nil, err
	}
	return s.VerifyChild(ctx, child.ID)
}

// VerifyChild is Verify without the membership check, for operator tooling.
func (s *LedgerService) VerifyChild(ctx context.Context, childID string) (*dto.LedgerVerification, error) {
	agg, err := s.repo.GetAggregate(ctx, childID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}
	deltas, err := s.repo.ListDeltas(ctx, childID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}

	result := &dto.LedgerVerification{
		ChildID:      childID,
		Deltas:       len(deltas),
		StoredLevel:  agg.Level,
		StoredPoints: agg.Points,
	}
	level, points, err := ReplayLedger(deltas, s.cfg.PointsPerLevel)
	if err != nil {
		s.logger.Error("ledger replay failed", zap.String("child_id", childID), zap.Error(err))
		return result, nil
	}
	result.ReplayLevel = level
	result.ReplayPoints = points
	result.Consistent = level == agg.Level && points == agg.Points && int64(len(deltas)) == agg.LastSequence
	if !result.Consistent {
		s.logger.Error("ledger aggregate drift",
			zap.String("child_id", childID),
			zap.Int("stored_level", agg.Level), zap.Int("replay_level", level),
			zap.Int("stored_points", agg.Points), zap.Int("replay_points", points))
	}
	return result, nil
}

// authorizedChild loads a child and checks the principal against the child's own family.
func (s *LedgerService) authorizedChild(ctx context.Context, principalID, childID string) (*models.Child, error) {
	child, err := s.resolveChild(ctx, childID, "")
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, principalID, child.FamilyUnitID); err != nil {
		return nil, err
	}
	return child, nil
}

func (s *LedgerService) resolveChild(ctx context.Context, childID, familyID string) (*models.Child, error) {
	if _, err := uuid.Parse(childID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid child id")
	}
	child, err := s.children.GetChild(ctx, childID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}
	if familyID != "" && child.FamilyUnitID != familyID {
		return nil, errFamilyAccessDenied
	}
	return child, nil
}

func (s *LedgerService) mapApplyError(err error, message string) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrTaskNotPending):
		return appErrors.Clone(appErrors.ErrConflict, "task is not pending")
	case errors.Is(err, sql.ErrNoRows):
		return errFamilyAccessDenied
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

