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

func TestConversationRepositoryAppendMessageAssignsSequence(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE conversations SET last_sequence = last_sequence + 1 WHERE id = $1 AND family_unit_id = $2 RETURNING last_sequence")).
		WithArgs("conv-1", "fam-1").
		WillReturnRows(sqlmock.NewRows([]string{"last_sequence"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO messages")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	msg := &models.Message{
		ConversationID:   "conv-1",
		FamilyUnitID:     "fam-1",
		AuthorID:         "user-1",
		Kind:             models.MessageText,
		Content:          "Bom dia",
		ModerationStatus: models.ModerationAllowed,
		ModerationSource: models.SourceClassifier,
	}
	require.NoError(t, repo.AppendMessage(context.Background(), msg))
	assert.Equal(t, int64(7), msg.Sequence)
	assert.NotEmpty(t, msg.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepositoryAppendMessageFamilyMismatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE conversations SET last_sequence")).
		WithArgs("conv-1", "fam-other").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.AppendMessage(context.Background(), &models.Message{ConversationID: "conv-1", FamilyUnitID: "fam-other"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepositoryListVisible(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "conversation_id", "family_unit_id", "author_id", "kind", "content", "media_path", "toxicity", "sentiment", "moderation_status", "moderation_source", "rationale", "sequence", "created_at"}).
		AddRow("m-1", "conv-1", "fam-1", "user-1", "text", "oi", nil, 0.1, 0.5, "allowed", "classifier", "", int64(1), now).
		AddRow("m-3", "conv-1", "fam-1", "user-2", "text", "tudo bem?", nil, 0.0, 0.6, "allowed", "classifier", "", int64(3), now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE conversation_id = $1 AND NOT (moderation_status = ANY($2))")).
		WithArgs("conv-1", sqlmock.AnyArg(), 21, 0).
		WillReturnRows(rows)

	messages, err := repo.ListVisible(context.Background(), "conv-1", []models.ModerationStatus{models.ModerationBlocked}, 21, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, int64(3), messages[1].Sequence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepositoryMarkReadIsIdempotent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (message_id, reader_id) DO NOTHING")).
		WithArgs("m-1", "user-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkRead(context.Background(), models.MessageRead{MessageID: "m-1", ReaderID: "user-2"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
