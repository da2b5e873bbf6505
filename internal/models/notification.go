package models

import "time"

// Severity classifies a notification for display and suppression rules.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeveritySuccess   Severity = "success"
	SeverityWarning   Severity = "warning"
	SeverityError     Severity = "error"
	SeverityEmergency Severity = "emergency"
)

// Notification is pulled by clients; there is no push channel.
type Notification struct {
	ID           string     `db:"id" json:"id"`
	RecipientID  string     `db:"recipient_id" json:"recipient_id"`
	FamilyUnitID string     `db:"family_unit_id" json:"family_unit_id"`
	Title        string     `db:"title" json:"title"`
	Body         string     `db:"body" json:"body"`
	Severity     Severity   `db:"severity" json:"severity"`
	ReadAt       *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Recipient is a family member considered for delivery.
type Recipient struct {
	UserID            string `db:"user_id"`
	SuppressionActive bool   `db:"suppression_active"`
}
