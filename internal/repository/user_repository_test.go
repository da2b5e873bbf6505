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
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	deleted := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "active_family_id", "suppression_active", "last_login", "created_at", "updated_at", "deleted_at"}).
		AddRow("user-1", "ana@example.com", "hash", "Ana", nil, false, nil, time.Now(), time.Now(), deleted)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1)")).
		WithArgs("Ana@Example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Ana@Example.com")
	require.NoError(t, err)
	assert.True(t, user.Deleted())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySetActiveFamilyRequiresMembership(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active_family_id = $2")).
		WithArgs("user-1", "fam-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetActiveFamily(context.Background(), "user-1", "fam-9")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "user-1"
	entry := &models.AuditLog{UserID: &userID, Action: models.AuditActionLogin, Resource: "auth"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil, nil)

	var dest map[string]int
	err := repo.Get(context.Background(), "progress:child-1", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "progress:child-1", map[string]int{"level": 2}, time.Minute))
	assert.NoError(t, repo.Delete(context.Background(), "progress:child-1"))
	assert.NoError(t, repo.Ping(context.Background()))
}
