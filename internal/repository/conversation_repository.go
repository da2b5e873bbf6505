package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/mediare/family-trust-api/internal/models"
)

const messageColumns = `id, conversation_id, family_unit_id, author_id, kind, content, media_path, toxicity, sentiment, moderation_status, moderation_source, rationale, sequence, created_at`

// ConversationRepository persists chat threads and their append-only messages.
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository constructs the repository.
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a conversation.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO conversations (id, family_unit_id, title, last_sequence, created_at) VALUES (:id, :family_unit_id, :title, 0, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, conv); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// GetByID returns a conversation.
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	const query = `SELECT id, family_unit_id, title, last_sequence, created_at FROM conversations WHERE id = $1`
	var conv models.Conversation
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conv, nil
}

// ListByFamily returns the family's conversations, newest first.
func (r *ConversationRepository) ListByFamily(ctx context.Context, familyID string) ([]models.Conversation, error) {
	const query = `SELECT id, family_unit_id, title, last_sequence, created_at FROM conversations WHERE family_unit_id = $1 ORDER BY created_at DESC`
	var convs []models.Conversation
	if err := r.db.SelectContext(ctx, &convs, query, familyID); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// AppendMessage assigns the next per-conversation sequence and inserts msg in
// one transaction. The counter update takes the conversation row lock, so
// concurrent appends to one thread are totally ordered. The family predicate
// makes a conversation/family mismatch fail with sql.ErrNoRows.
func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *models.Message) (err error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append message: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const bump = `UPDATE conversations SET last_sequence = last_sequence + 1 WHERE id = $1 AND family_unit_id = $2 RETURNING last_sequence`
	var seq int64
	if err = tx.GetContext(ctx, &seq, bump, msg.ConversationID, msg.FamilyUnitID); err != nil {
		return fmt.Errorf("next message sequence: %w", err)
	}
	msg.Sequence = seq

	const insert = `INSERT INTO messages (` + messageColumns + `) VALUES (:id, :conversation_id, :family_unit_id, :author_id, :kind, :content, :media_path, :toxicity, :sentiment, :moderation_status, :moderation_source, :rationale, :sequence, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit append message: %w", err)
	}
	return nil
}

// ListVisible returns messages whose status is not in hidden, ordered by sequence.
func (r *ConversationRepository) ListVisible(ctx context.Context, conversationID string, hidden []models.ModerationStatus, limit, offset int) ([]models.Message, error) {
	statuses := make([]string, len(hidden))
	for i, s := range hidden {
		statuses[i] = string(s)
	}
	const query = `SELECT ` + messageColumns + ` FROM messages
WHERE conversation_id = $1 AND NOT (moderation_status = ANY($2))
ORDER BY sequence ASC LIMIT $3 OFFSET $4`
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, conversationID, pq.Array(statuses), limit, offset); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// GetMessage returns a single message.
func (r *ConversationRepository) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	const query = `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	var msg models.Message
	if err := r.db.GetContext(ctx, &msg, query, id); err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &msg, nil
}

// MarkRead records a read receipt. Repeated reads keep the first timestamp.
func (r *ConversationRepository) MarkRead(ctx context.Context, read models.MessageRead) error {
	if read.ReadAt.IsZero() {
		read.ReadAt = time.Now().UTC()
	}
	const query = `INSERT INTO message_reads (message_id, reader_id, read_at) VALUES ($1, $2, $3) ON CONFLICT (message_id, reader_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, read.MessageID, read.ReaderID, read.ReadAt); err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

