package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mediare/family-trust-api/internal/models"
)

// NotificationRepository persists pull-based notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores a notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, recipient_id, family_unit_id, title, body, severity, created_at)
VALUES (:id, :recipient_id, :family_unit_id, :title, :body, :severity, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListRecent returns the newest notifications for a recipient within a family.
func (r *NotificationRepository) ListRecent(ctx context.Context, recipientID, familyID string, limit int) ([]models.Notification, error) {
	const query = `SELECT id, recipient_id, family_unit_id, title, body, severity, read_at, created_at FROM notifications
WHERE recipient_id = $1 AND family_unit_id = $2 ORDER BY created_at DESC LIMIT $3`
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, recipientID, familyID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead stamps read_at on a notification owned by the recipient. A
// notification owned by someone else yields sql.ErrNoRows.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string, readAt time.Time) error {
	const query = `UPDATE notifications SET read_at = COALESCE(read_at, $3) WHERE id = $1 AND recipient_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, recipientID, readAt)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetRecipient loads the delivery preferences of a live principal.
func (r *NotificationRepository) GetRecipient(ctx context.Context, userID string) (*models.Recipient, error) {
	const query = `SELECT id AS user_id, suppression_active FROM users WHERE id = $1 AND deleted_at IS NULL`
	var rec models.Recipient
	if err := r.db.GetContext(ctx, &rec, query, userID); err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}
	return &rec, nil
}
