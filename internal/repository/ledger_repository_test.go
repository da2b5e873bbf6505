package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediare/family-trust-api/internal/models"
)

var levelColumns = []string{"child_id", "family_unit_id", "level", "points", "last_sequence", "updated_at"}

func expectLockedLevel(mock sqlmock.Sqlmock, level, points int, lastSeq int64) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO child_levels")).
		WithArgs("child-1", "fam-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("child-1", "fam-1").
		WillReturnRows(sqlmock.NewRows(levelColumns).AddRow("child-1", "fam-1", level, points, lastSeq, time.Now()))
}

func TestLedgerRepositoryApplyAppendsNextSequence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	expectLockedLevel(mock, 2, 40, 4)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO point_deltas")).
		WithArgs(sqlmock.AnyArg(), "child-1", "fam-1", int64(5), 70, "chores", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE child_levels SET level = $2, points = $3, last_sequence = $4, updated_at = $5 WHERE child_id = $1")).
		WithArgs("child-1", 3, 10, int64(5), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	agg, delta, err := repo.Apply(context.Background(), "child-1", "fam-1", nil, func(cur models.LevelAggregate) (models.LevelAggregate, int, string, error) {
		assert.Equal(t, 2, cur.Level)
		return models.LevelAggregate{Level: 3, Points: 10}, 70, "chores", nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), delta.Sequence)
	assert.Equal(t, int64(5), agg.LastSequence)
	assert.Equal(t, 3, agg.Level)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryApplyStepErrorRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	expectLockedLevel(mock, 1, 20, 1)
	mock.ExpectRollback()

	insufficient := errors.New("insufficient")
	_, _, err := repo.Apply(context.Background(), "child-1", "fam-1", nil, func(models.LevelAggregate) (models.LevelAggregate, int, string, error) {
		return models.LevelAggregate{}, 0, "", insufficient
	})
	require.ErrorIs(t, err, insufficient)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryApplyGuardRejects(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)
	tasks := NewTaskRepository(db)

	expectLockedLevel(mock, 1, 0, 0)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET status = 'completed'")).
		WithArgs("task-1", "fam-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	called := false
	_, _, err := repo.Apply(context.Background(), "child-1", "fam-1", tasks.CompleteGuard("task-1", "fam-1", time.Now()), func(cur models.LevelAggregate) (models.LevelAggregate, int, string, error) {
		called = true
		return cur, 10, "task", nil
	})
	require.ErrorIs(t, err, ErrTaskNotPending)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryGetAggregateDefaultsForNewChild(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM child_levels WHERE child_id = $1")).
		WithArgs("child-9").
		WillReturnError(sql.ErrNoRows)

	agg, err := repo.GetAggregate(context.Background(), "child-9")
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Level)
	assert.Zero(t, agg.Points)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepositoryListDeltasOrdered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM point_deltas WHERE child_id = $1 ORDER BY sequence ASC")).
		WithArgs("child-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "child_id", "family_unit_id", "sequence", "amount", "reason", "created_at"}).
			AddRow("d-1", "child-1", "fam-1", int64(1), 250, "award", now).
			AddRow("d-2", "child-1", "fam-1", int64(2), -30, "redeem", now))

	deltas, err := repo.ListDeltas(context.Background(), "child-1")
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, -30, deltas[1].Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}
