package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediare/family-trust-api/internal/models"
)

func TestTaskRepositoryCompleteGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET status = 'completed'")).
		WithArgs("task-1", "fam-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.CompleteGuard("task-1", "fam-1", at)(context.Background(), tx))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryCompleteGuardAlreadyCompleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET status = 'completed'")).
		WithArgs("task-1", "fam-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.CompleteGuard("task-1", "fam-1", at)(context.Background(), tx)
	require.ErrorIs(t, err, ErrTaskNotPending)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryListTasksFiltersChild(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks WHERE family_unit_id = $1 AND deleted_at IS NULL AND child_id = $2 ORDER BY created_at DESC")).
		WithArgs("fam-1", "child-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "family_unit_id", "child_id", "name", "description", "points", "status", "created_by", "created_at", "completed_at"}).
			AddRow("task-1", "fam-1", "child-1", "Arrumar a cama", "", 20, "pending", "parent-1", now, nil))

	tasks, err := repo.ListTasks(context.Background(), "fam-1", "child-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskPending, tasks[0].Status)
	assert.Nil(t, tasks[0].CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryGetRewardMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rewards WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("reward-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetReward(context.Background(), "reward-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryDeleteTaskSoftDeletes(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET deleted_at = $3 WHERE id = $1 AND family_unit_id = $2 AND deleted_at IS NULL")).
		WithArgs("task-1", "fam-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteTask(context.Background(), "task-1", "fam-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryDeleteRewardMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE rewards SET deleted_at = $3")).
		WithArgs("reward-1", "fam-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteReward(context.Background(), "reward-1", "fam-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
