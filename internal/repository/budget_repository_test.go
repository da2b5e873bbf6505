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

var budgetColumns = []string{"id", "family_unit_id", "child_id", "description", "estimated_value", "status", "created_at"}

func TestBudgetRepositoryListByFamily(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBudgetRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM budgets\nWHERE family_unit_id = $1 AND deleted_at IS NULL")).
		WithArgs("fam-1").
		WillReturnRows(sqlmock.NewRows(budgetColumns).
			AddRow("b-1", "fam-1", "child-1", "Material escolar", 320.5, "proposed", now).
			AddRow("b-2", "fam-1", nil, "Plano de saúde", 900.0, "approved", now))

	budgets, err := repo.ListByFamily(context.Background(), "fam-1")
	require.NoError(t, err)
	require.Len(t, budgets, 2)
	require.NotNil(t, budgets[0].ChildID)
	assert.Equal(t, "child-1", *budgets[0].ChildID)
	assert.Nil(t, budgets[1].ChildID)
	assert.Equal(t, models.BudgetApproved, budgets[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetRepositoryGetByIDMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBudgetRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM budgets WHERE id = $1")).
		WithArgs("b-9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "b-9")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
