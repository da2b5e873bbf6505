package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
	"github.com/mediare/family-trust-api/pkg/response"
)

type moderationService interface {
	CreateConversation(ctx context.Context, principalID, familyID string, req dto.CreateConversationRequest) (*models.Conversation, error)
	ListConversations(ctx context.Context, principalID, familyID string) ([]models.Conversation, error)
	Moderate(ctx context.Context, conversationID, authorID, content string) (*dto.ModerationResult, error)
	ModerateAudio(ctx context.Context, conversationID, authorID string, audio []byte, mimeType string) (*dto.AudioResult, error)
	ListMessages(ctx context.Context, principalID, conversationID string, page, pageSize int) (*dto.MessagePage, error)
	MarkRead(ctx context.Context, principalID, messageID string) error
}

// ConversationHandler exposes moderated family chat.
type ConversationHandler struct {
	service       moderationService
	maxAudioBytes int64
}

// NewConversationHandler constructs the handler. Uploads larger than
// maxAudioBytes are cut short and rejected by the service.
func NewConversationHandler(svc moderationService, maxAudioBytes int64) *ConversationHandler {
	if maxAudioBytes <= 0 {
		maxAudioBytes = 10 << 20
	}
	return &ConversationHandler{service: svc, maxAudioBytes: maxAudioBytes}
}

// Create godoc
// @Summary Open a conversation
// @Tags Conversations
// @Accept json
// @Produce json
// @Param familyId path string true "Family ID"
// @Param payload body dto.CreateConversationRequest true "Conversation"
// @Success 201 {object} response.Envelope
// @Router /families/{familyId}/conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	var req dto.CreateConversationRequest
	if !bindJSON(c, &req, "invalid conversation payload") {
		return
	}
	conv, err := h.service.CreateConversation(c.Request.Context(), claims.UserID, c.Param("familyId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, conv)
}

// List godoc
// @Summary List conversations of a family
// @Tags Conversations
// @Produce json
// @Param familyId path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Router /families/{familyId}/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	items, err := h.service.ListConversations(c.Request.Context(), claims.UserID, c.Param("familyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// SendText godoc
// @Summary Send a text message
// @Description The message is classified before storage. Blocked messages are kept for audit and never delivered.
// @Tags Conversations
// @Accept json
// @Produce json
// @Param conversationId path string true "Conversation ID"
// @Param payload body dto.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /conversations/{conversationId}/messages [post]
func (h *ConversationHandler) SendText(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	var req dto.SendMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}
	res, err := h.service.Moderate(c.Request.Context(), c.Param("conversationId"), claims.UserID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// SendAudio godoc
// @Summary Send an audio message
// @Description The recording is transcribed and classified; only allowed audio is stored.
// @Tags Conversations
// @Accept multipart/form-data
// @Produce json
// @Param conversationId path string true "Conversation ID"
// @Param audio formData file true "Recording"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /conversations/{conversationId}/audio [post]
func (h *ConversationHandler) SendAudio(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	header, err := c.FormFile("audio")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "audio file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable audio file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxAudioBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable audio file"))
		return
	}

	res, err := h.service.ModerateAudio(c.Request.Context(), c.Param("conversationId"), claims.UserID, data, header.Header.Get("Content-Type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Messages godoc
// @Summary List visible messages
// @Tags Conversations
// @Produce json
// @Param conversationId path string true "Conversation ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /conversations/{conversationId}/messages [get]
func (h *ConversationHandler) Messages(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	page, err := h.service.ListMessages(c.Request.Context(), claims.UserID, c.Param("conversationId"), queryInt(c, "page", 1), queryInt(c, "page_size", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Messages, &response.Pagination{Page: page.Page, PageSize: page.PageSize, HasMore: page.HasMore})
}

// MarkRead godoc
// @Summary Mark a message as read
// @Tags Conversations
// @Param messageId path string true "Message ID"
// @Success 204
// @Router /messages/{messageId}/read [post]
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	claims := principal(c)
	if claims == nil {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), claims.UserID, c.Param("messageId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
