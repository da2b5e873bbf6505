package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediare/family-trust-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestFamilyRepositoryMemberRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFamilyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT fm.role FROM family_members fm")).
		WithArgs("user-1", "fam-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("parent"))

	role, err := repo.MemberRole(context.Background(), "user-1", "fam-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleParent, role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyRepositoryMemberRoleRevoked(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFamilyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT fm.role FROM family_members fm")).
		WithArgs("user-1", "fam-2").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.MemberRole(context.Background(), "user-1", "fam-2")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyRepositoryListRecipientsExcludesSender(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFamilyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT u.id AS user_id, u.suppression_active FROM family_members fm")).
		WithArgs("fam-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "suppression_active"}).
			AddRow("user-2", false).
			AddRow("user-3", true))

	recipients, err := repo.ListRecipients(context.Background(), "fam-1", "user-1")
	require.NoError(t, err)
	require.Len(t, recipients, 2)
	assert.True(t, recipients[1].SuppressionActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFamilyRepositoryListMemberships(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFamilyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT f.id AS family_unit_id, f.name AS family_name")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"family_unit_id", "family_name", "mode", "role", "active"}).
			AddRow("fam-1", "Silva", "collaborative", "parent", true).
			AddRow("fam-2", "Souza", "mediated", "mediator", false))

	memberships, err := repo.ListMemberships(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	assert.True(t, memberships[0].Active)
	assert.Equal(t, models.RoleMediator, memberships[1].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}
