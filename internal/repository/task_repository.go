package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mediare/family-trust-api/internal/models"
)

// ErrTaskNotPending is returned by the completion guard when the task was
// already completed or does not belong to the family.
var ErrTaskNotPending = errors.New("task not pending")

const taskColumns = `id, family_unit_id, child_id, name, description, points, status, created_by, created_at, completed_at`

// TaskRepository persists tasks and the reward catalogue.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateTask inserts a pending task.
func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	task.Status = models.TaskPending
	const query = `INSERT INTO tasks (id, family_unit_id, child_id, name, description, points, status, created_by, created_at)
VALUES (:id, :family_unit_id, :child_id, :name, :description, :points, :status, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask returns a live task.
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND deleted_at IS NULL`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// ListTasks returns the family's live tasks, optionally for one child.
func (r *TaskRepository) ListTasks(ctx context.Context, familyID, childID string) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE family_unit_id = $1 AND deleted_at IS NULL`
	args := []interface{}{familyID}
	if childID != "" {
		query += ` AND child_id = $2`
		args = append(args, childID)
	}
	query += ` ORDER BY created_at DESC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// CompleteGuard flips the task from pending to completed inside a ledger
// transaction. Exactly one concurrent caller wins; the rest get ErrTaskNotPending.
func (r *TaskRepository) CompleteGuard(taskID, familyID string, completedAt time.Time) TxGuard {
	return func(ctx context.Context, tx *sqlx.Tx) error {
		const query = `UPDATE tasks SET status = 'completed', completed_at = $3
WHERE id = $1 AND family_unit_id = $2 AND status = 'pending' AND deleted_at IS NULL`
		res, err := tx.ExecContext(ctx, query, taskID, familyID, completedAt)
		if err != nil {
			return fmt.Errorf("complete task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("complete task rows: %w", err)
		}
		if affected != 1 {
			return ErrTaskNotPending
		}
		return nil
	}
}

// CreateReward inserts a catalogue entry.
func (r *TaskRepository) CreateReward(ctx context.Context, reward *models.Reward) error {
	if reward.ID == "" {
		reward.ID = uuid.NewString()
	}
	if reward.CreatedAt.IsZero() {
		reward.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO rewards (id, family_unit_id, name, description, points_required, created_at)
VALUES (:id, :family_unit_id, :name, :description, :points_required, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reward); err != nil {
		return fmt.Errorf("create reward: %w", err)
	}
	return nil
}

// GetReward returns a live reward.
func (r *TaskRepository) GetReward(ctx context.Context, id string) (*models.Reward, error) {
	const query = `SELECT id, family_unit_id, name, description, points_required, created_at FROM rewards WHERE id = $1 AND deleted_at IS NULL`
	var reward models.Reward
	if err := r.db.GetContext(ctx, &reward, query, id); err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return &reward, nil
}

// ListRewards returns the family's catalogue, cheapest first.
func (r *TaskRepository) ListRewards(ctx context.Context, familyID string) ([]models.Reward, error) {
	const query = `SELECT id, family_unit_id, name, description, points_required, created_at FROM rewards WHERE family_unit_id = $1 AND deleted_at IS NULL ORDER BY points_required ASC, name ASC`
	var rewards []models.Reward
	if err := r.db.SelectContext(ctx, &rewards, query, familyID); err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

// DeleteTask soft-deletes a live task of the family. sql.ErrNoRows means it
// was unknown, already deleted or owned by another family.
func (r *TaskRepository) DeleteTask(ctx context.Context, id, familyID string) error {
	const query = `UPDATE tasks SET deleted_at = $3 WHERE id = $1 AND family_unit_id = $2 AND deleted_at IS NULL`
	return r.softDelete(ctx, "task", query, id, familyID)
}

// DeleteReward soft-deletes a live reward of the family.
func (r *TaskRepository) DeleteReward(ctx context.Context, id, familyID string) error {
	const query = `UPDATE rewards SET deleted_at = $3 WHERE id = $1 AND family_unit_id = $2 AND deleted_at IS NULL`
	return r.softDelete(ctx, "reward", query, id, familyID)
}

func (r *TaskRepository) softDelete(ctx context.Context, entity, query, id, familyID string) error {
	res, err := r.db.ExecContext(ctx, query, id, familyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s rows: %w", entity, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete %s: %w", entity, sql.ErrNoRows)
	}
	return nil
}
