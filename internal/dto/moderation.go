package dto

import (
	"github.com/mediare/family-trust-api/internal/models"
)

// CreateConversationRequest opens a chat thread in a family.
type CreateConversationRequest struct {
	Title string `json:"title" validate:"max=120"`
}

// SendMessageRequest carries a text message for moderation.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// ModerationResult is returned when a message was accepted for delivery.
type ModerationResult struct {
	MessageID        string                  `json:"message_id"`
	Sequence         int64                   `json:"sequence"`
	Status           models.ModerationStatus `json:"moderation_status"`
	Source           models.ModerationSource `json:"moderation_source"`
	Toxicity         float64                 `json:"toxicity_score"`
	Sentiment        float64                 `json:"sentiment_score"`
	Rationale        string                  `json:"rationale,omitempty"`
	RewriteSuggested bool                    `json:"rewrite_suggested"`
}

// AudioResult is returned for an accepted audio message.
type AudioResult struct {
	MessageID     string                  `json:"message_id"`
	Sequence      int64                   `json:"sequence"`
	Transcription string                  `json:"transcription"`
	Status        models.ModerationStatus `json:"moderation_status"`
	Toxicity      float64                 `json:"toxicity_score"`
}

// MessagePage is one page of visible messages in sequence order.
type MessagePage struct {
	Messages []models.Message `json:"messages"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	HasMore  bool             `json:"has_more"`
}
