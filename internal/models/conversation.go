package models

import "time"

// ModerationStatus is the terminal state of a moderated message.
type ModerationStatus string

const (
	ModerationAllowed      ModerationStatus = "allowed"
	ModerationNeedsRewrite ModerationStatus = "needs_rewrite"
	ModerationBlocked      ModerationStatus = "blocked"
)

// Valid reports whether s is one of the three known statuses.
func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationAllowed, ModerationNeedsRewrite, ModerationBlocked:
		return true
	}
	return false
}

// ModerationSource records which path produced a verdict.
type ModerationSource string

const (
	SourceClassifier ModerationSource = "classifier"
	SourceFallback   ModerationSource = "fallback"
)

// MessageKind distinguishes typed text from transcribed audio.
type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageAudio MessageKind = "audio"
)

// Conversation is a family chat thread. LastSequence is the per-thread
// counter used to totally order its messages.
type Conversation struct {
	ID           string    `db:"id" json:"id"`
	FamilyUnitID string    `db:"family_unit_id" json:"family_unit_id"`
	Title        string    `db:"title" json:"title"`
	LastSequence int64     `db:"last_sequence" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Message is immutable once stored, including blocked ones kept for audit.
type Message struct {
	ID               string           `db:"id" json:"id"`
	ConversationID   string           `db:"conversation_id" json:"conversation_id"`
	FamilyUnitID     string           `db:"family_unit_id" json:"family_unit_id"`
	AuthorID         string           `db:"author_id" json:"author_id"`
	Kind             MessageKind      `db:"kind" json:"kind"`
	Content          string           `db:"content" json:"content"`
	MediaPath        *string          `db:"media_path" json:"-"`
	Toxicity         float64          `db:"toxicity" json:"toxicity"`
	Sentiment        float64          `db:"sentiment" json:"sentiment"`
	ModerationStatus ModerationStatus `db:"moderation_status" json:"moderation_status"`
	ModerationSource ModerationSource `db:"moderation_source" json:"moderation_source"`
	Rationale        string           `db:"rationale" json:"rationale,omitempty"`
	Sequence         int64            `db:"sequence" json:"sequence"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// MessageRead is a read receipt for one reader.
type MessageRead struct {
	MessageID string    `db:"message_id" json:"message_id"`
	ReaderID  string    `db:"reader_id" json:"reader_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}
