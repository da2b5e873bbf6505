package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	"github.com/mediare/family-trust-api/internal/repository"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

type taskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, familyID, childID string) ([]models.Task, error)
	CompleteGuard(taskID, familyID string, completedAt time.Time) repository.TxGuard
	CreateReward(ctx context.Context, reward *models.Reward) error
	GetReward(ctx context.Context, id string) (*models.Reward, error)
	ListRewards(ctx context.Context, familyID string) ([]models.Reward, error)
	DeleteTask(ctx context.Context, id, familyID string) error
	DeleteReward(ctx context.Context, id, familyID string) error
}

type roleAuthorizer interface {
	Authorize(ctx context.Context, principalID, familyID string) error
	AuthorizeRole(ctx context.Context, principalID, familyID string, roles ...models.MemberRole) error
}

type ledgerEngine interface {
	AwardInFamily(ctx context.Context, childID, familyID string, amount int, reason string, guard repository.TxGuard) (*dto.AwardResult, error)
	RedeemInFamily(ctx context.Context, childID, familyID string, cost int, reason string) (*dto.RedeemResult, error)
	PointsPerLevel() int
}

// TaskService manages family tasks and the reward catalogue, and drives the
// ledger when a task is completed or a reward redeemed.
type TaskService struct {
	repo      taskRepository
	children  childRepository
	guard     roleAuthorizer
	ledger    ledgerEngine
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTaskService constructs the service.
func NewTaskService(repo taskRepository, children childRepository, guard roleAuthorizer, ledger ledgerEngine, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TaskService{
		repo:      repo,
		children:  children,
		guard:     guard,
		ledger:    ledger,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

// CreateTask lets a parent assign a task to a child of the family.
func (s *TaskService) CreateTask(ctx context.Context, principalID, familyID string, req dto.CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	if err := s.guard.AuthorizeRole(ctx, principalID, familyID, models.RoleParent); err != nil {
		return nil, err
	}
	child, err := s.children.GetChild(ctx, req.ChildID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}
	if child == nil || child.FamilyUnitID != familyID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "child not found or does not belong to this family")
	}

	task := &models.Task{
		FamilyUnitID: familyID,
		ChildID:      child.ID,
		Name:         req.Name,
		Description:  req.Description,
		Points:       req.Points,
		CreatedBy:    principalID,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}
	return task, nil
}

// ListTasks returns the family's tasks, optionally for one child.
func (s *TaskService) ListTasks(ctx context.Context, principalID, familyID, childID string) ([]models.Task, error) {
	if err := s.guard.Authorize(ctx, principalID, familyID); err != nil {
		return nil, err
	}
	if childID != "" {
		if _, err := uuid.Parse(childID); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid child id")
		}
	}
	tasks, err := s.repo.ListTasks(ctx, familyID, childID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// CompleteTask marks a pending task completed and awards its points in the
// same transaction. A second completion fails with a conflict and awards nothing.
func (s *TaskService) CompleteTask(ctx context.Context, principalID, taskID string) (*dto.TaskCompletion, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, principalID, task.FamilyUnitID); err != nil {
		return nil, err
	}
	if task.Status == models.TaskCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "task already completed")
	}

	completedAt := time.Now().UTC()
	award, err := s.ledger.AwardInFamily(ctx, task.ChildID, task.FamilyUnitID, task.Points,
		fmt.Sprintf("Tarefa concluída: %s", task.Name),
		s.repo.CompleteGuard(task.ID, task.FamilyUnitID, completedAt))
	if err != nil {
		if appErrors.Is(err, appErrors.ErrConflict) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "task already completed")
		}
		return nil, err
	}

	task.Status = models.TaskCompleted
	task.CompletedAt = &completedAt
	s.notifier.NotifyFamily(ctx, task.FamilyUnitID, principalID,
		"Missão Cumprida!",
		fmt.Sprintf("A tarefa '%s' foi marcada como concluída.", task.Name),
		models.SeveritySuccess)

	s.logger.Info("task completed",
		zap.String("task_id", task.ID),
		zap.String("child_id", task.ChildID),
		zap.Int("points", task.Points))
	return &dto.TaskCompletion{Task: *task, Award: *award}, nil
}

// CreateReward lets a parent add a reward to the family catalogue.
func (s *TaskService) CreateReward(ctx context.Context, principalID, familyID string, req dto.CreateRewardRequest) (*models.Reward, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reward payload")
	}
	if err := s.guard.AuthorizeRole(ctx, principalID, familyID, models.RoleParent); err != nil {
		return nil, err
	}
	// Balances always stay below the level threshold.
	if threshold := s.ledger.PointsPerLevel(); req.PointsRequired >= threshold {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("points_required must be below %d", threshold))
	}
	reward := &models.Reward{
		FamilyUnitID:   familyID,
		Name:           req.Name,
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
	}
	if err := s.repo.CreateReward(ctx, reward); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reward")
	}
	return reward, nil
}

// DeleteTask lets a parent remove a task of their family. Completed tasks keep
// their ledger deltas.
func (s *TaskService) DeleteTask(ctx context.Context, principalID, taskID string) error {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.guard.AuthorizeRole(ctx, principalID, task.FamilyUnitID, models.RoleParent); err != nil {
		return err
	}
	if err := s.repo.DeleteTask(ctx, task.ID, task.FamilyUnitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task")
	}
	s.logger.Info("task deleted", zap.String("task_id", task.ID), zap.String("deleted_by", principalID))
	return nil
}

// ListRewards returns the family's catalogue.
func (s *TaskService) ListRewards(ctx context.Context, principalID, familyID string) ([]models.Reward, error) {
	if err := s.guard.Authorize(ctx, principalID, familyID); err != nil {
		return nil, err
	}
	rewards, err := s.repo.ListRewards(ctx, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rewards")
	}
	if rewards == nil {
		rewards = []models.Reward{}
	}
	return rewards, nil
}

// RedeemReward spends a child's points on a catalogue reward.
func (s *TaskService) RedeemReward(ctx context.Context, principalID, rewardID string, req dto.RedeemRewardRequest) (*dto.RedeemResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid redemption payload")
	}
	reward, err := s.loadReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, principalID, reward.FamilyUnitID); err != nil {
		return nil, err
	}

	result, err := s.ledger.RedeemInFamily(ctx, req.ChildID, reward.FamilyUnitID, reward.PointsRequired,
		fmt.Sprintf("Resgate: %s", reward.Name))
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyFamily(ctx, reward.FamilyUnitID, principalID,
		"Recompensa Resgatada!",
		fmt.Sprintf("A recompensa '%s' foi resgatada.", reward.Name),
		models.SeverityInfo)
	return result, nil
}

// DeleteReward lets a parent remove a reward from the family catalogue.
func (s *TaskService) DeleteReward(ctx context.Context, principalID, rewardID string) error {
	reward, err := s.loadReward(ctx, rewardID)
	if err != nil {
		return err
	}
	if err := s.guard.AuthorizeRole(ctx, principalID, reward.FamilyUnitID, models.RoleParent); err != nil {
		return err
	}
	if err := s.repo.DeleteReward(ctx, reward.ID, reward.FamilyUnitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "reward not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete reward")
	}
	return nil
}

func (s *TaskService) loadReward(ctx context.Context, rewardID string) (*models.Reward, error) {
	if _, err := uuid.Parse(rewardID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid reward id")
	}
	reward, err := s.repo.GetReward(ctx, rewardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reward not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reward")
	}
	return reward, nil
}

func (s *TaskService) loadTask(ctx context.Context, taskID string) (*models.Task, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid task id")
	}
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	return task, nil
}
