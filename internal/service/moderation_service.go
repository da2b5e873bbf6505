package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

// Rewrite policies for needs_rewrite verdicts.
const (
	RewritePolicyDeliver = "deliver"
	RewritePolicyHold    = "hold"
)

const (
	fallbackBlockedRationale = "Bloqueado por filtro de palavras ofensivas (fallback)"
	fallbackAllowedRationale = "Análise automática"
	fallbackBlockedToxicity  = 0.9

	audioContentPrefix = "[audio] "
	defaultPageSize    = 50
	maxPageSize        = 200
)

// DefaultDenylist is the fallback filter used when the classifier cannot answer.
var DefaultDenylist = []string{"idiota", "burro", "estúpido", "imbecil", "retardado"}

var defaultAudioMIMEs = []string{"audio/webm", "audio/ogg", "audio/mpeg", "audio/mp4", "audio/wav", "audio/x-wav"}

type conversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListByFamily(ctx context.Context, familyID string) ([]models.Conversation, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListVisible(ctx context.Context, conversationID string, hidden []models.ModerationStatus, limit, offset int) ([]models.Message, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	MarkRead(ctx context.Context, read models.MessageRead) error
}

type readCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	InvalidatePattern(ctx context.Context, pattern string)
}

type mediaStore interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

// ModerationConfig tunes the moderation engine.
type ModerationConfig struct {
	ClassifierTimeout time.Duration
	RewritePolicy     string
	Denylist          []string
	AudioMaxBytes     int64
	AudioAllowedMIMEs []string
	ListCacheTTL      time.Duration
}

// verdict is a judgment together with the path that produced it.
type verdict struct {
	Judgment
	Source models.ModerationSource
}

// ModerationService classifies chat content before it becomes visible. Every
// submission ends in exactly one of allowed, needs_rewrite or blocked.
type ModerationService struct {
	repo       conversationRepository
	guard      familyAuthorizer
	classifier ClassifierPort
	media      mediaStore
	notifier   Notifier
	cache      readCache
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        ModerationConfig
	denylist   []string
}

// NewModerationService constructs the engine. A nil classifier sends every
// message through the fallback filter.
func NewModerationService(repo conversationRepository, guard familyAuthorizer, classifier ClassifierPort, media mediaStore, notifier Notifier, cache readCache, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg ModerationConfig) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ClassifierTimeout <= 0 {
		cfg.ClassifierTimeout = 8 * time.Second
	}
	if cfg.RewritePolicy != RewritePolicyHold {
		cfg.RewritePolicy = RewritePolicyDeliver
	}
	if cfg.AudioMaxBytes <= 0 {
		cfg.AudioMaxBytes = 10 << 20
	}
	if len(cfg.AudioAllowedMIMEs) == 0 {
		cfg.AudioAllowedMIMEs = defaultAudioMIMEs
	}

	denylist := make([]string, 0, len(DefaultDenylist)+len(cfg.Denylist))
	seen := make(map[string]struct{})
	for _, word := range append(append([]string{}, DefaultDenylist...), cfg.Denylist...) {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		denylist = append(denylist, word)
	}

	return &ModerationService{
		repo:       repo,
		guard:      guard,
		classifier: classifier,
		media:      media,
		notifier:   notifier,
		cache:      cache,
		validator:  validate,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		denylist:   denylist,
	}
}

// CreateConversation opens a thread in a family the principal belongs to.
func (s *ModerationService) CreateConversation(ctx context.Context, principalID, familyID string, req dto.CreateConversationRequest) (*models.Conversation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conversation payload")
	}
	if err := s.guard.Authorize(ctx, principalID, familyID); err != nil {
		return nil, err
	}
	conv := &models.Conversation{FamilyUnitID: familyID, Title: strings.TrimSpace(req.Title)}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create conversation")
	}
	return conv, nil
}

// ListConversations returns the family's threads.
func (s *ModerationService) ListConversations(ctx context.Context, principalID, familyID string) ([]models.Conversation, error) {
	if err := s.guard.Authorize(ctx, principalID, familyID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversations")
	}
	if items == nil {
		items = []models.Conversation{}
	}
	return items, nil
}

// Moderate classifies a text message, stores it with its verdict and reports
// the outcome. Blocked messages are kept for audit and never shown.
func (s *ModerationService) Moderate(ctx context.Context, conversationID, authorID, content string) (*dto.ModerationResult, error) {
	if err := s.validator.Struct(dto.SendMessageRequest{Content: content}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	conv, err := s.authorizedConversation(ctx, authorID, conversationID)
	if err != nil {
		return nil, err
	}

	v := s.judgeText(ctx, content)
	msg := &models.Message{
		ConversationID:   conv.ID,
		FamilyUnitID:     conv.FamilyUnitID,
		AuthorID:         authorID,
		Kind:             models.MessageText,
		Content:          content,
		Toxicity:         v.Toxicity,
		Sentiment:        v.Sentiment,
		ModerationStatus: v.Status,
		ModerationSource: v.Source,
		Rationale:        v.Reason,
	}
	if err := s.append(ctx, msg); err != nil {
		return nil, err
	}
	s.metrics.RecordModeration(string(models.MessageText), string(v.Source), string(v.Status))

	if err := s.outcome(ctx, conv, msg); err != nil {
		return nil, err
	}
	return &dto.ModerationResult{
		MessageID:        msg.ID,
		Sequence:         msg.Sequence,
		Status:           msg.ModerationStatus,
		Source:           msg.ModerationSource,
		Toxicity:         msg.Toxicity,
		Sentiment:        msg.Sentiment,
		Rationale:        msg.Rationale,
		RewriteSuggested: msg.ModerationStatus == models.ModerationNeedsRewrite,
	}, nil
}

// ModerateAudio transcribes and scores an audio message in one classifier
// call. Nothing is stored unless the transcript is usable and not blocked.
func (s *ModerationService) ModerateAudio(ctx context.Context, conversationID, authorID string, audio []byte, mimeType string) (*dto.AudioResult, error) {
	mimeType = normalizeMIME(mimeType)
	if len(audio) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "audio file is empty")
	}
	if int64(len(audio)) > s.cfg.AudioMaxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("audio exceeds %d bytes", s.cfg.AudioMaxBytes))
	}
	if !s.audioAllowed(mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported audio type")
	}
	conv, err := s.authorizedConversation(ctx, authorID, conversationID)
	if err != nil {
		return nil, err
	}

	judgment, err := s.judgeAudio(ctx, audio, mimeType)
	if err != nil {
		s.metrics.RecordModeration(string(models.MessageAudio), string(models.SourceClassifier), string(models.ModerationBlocked))
		return nil, rejected("não foi possível transcrever o áudio")
	}
	if judgment.Transcription == "" {
		s.metrics.RecordModeration(string(models.MessageAudio), string(models.SourceClassifier), string(models.ModerationBlocked))
		return nil, rejected("áudio sem conteúdo reconhecível")
	}
	s.metrics.RecordModeration(string(models.MessageAudio), string(models.SourceClassifier), string(judgment.Status))
	if judgment.Status == models.ModerationBlocked {
		s.logger.Info("audio message blocked", zap.String("conversation_id", conv.ID), zap.String("author_id", authorID))
		return nil, rejected(judgment.Reason)
	}

	msgID := uuid.NewString()
	stored, err := s.media.Save(path.Join(conv.FamilyUnitID, conv.ID, msgID+audioExtension(mimeType)), audio)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store audio")
	}
	msg := &models.Message{
		ID:               msgID,
		ConversationID:   conv.ID,
		FamilyUnitID:     conv.FamilyUnitID,
		AuthorID:         authorID,
		Kind:             models.MessageAudio,
		Content:          audioContentPrefix + judgment.Transcription,
		MediaPath:        &stored,
		Toxicity:         judgment.Toxicity,
		Sentiment:        judgment.Sentiment,
		ModerationStatus: judgment.Status,
		ModerationSource: models.SourceClassifier,
		Rationale:        judgment.Reason,
	}
	if err := s.append(ctx, msg); err != nil {
		if delErr := s.media.Delete(stored); delErr != nil {
			s.logger.Warn("failed to remove orphaned audio", zap.String("path", stored), zap.Error(delErr))
		}
		return nil, err
	}

	if err := s.outcome(ctx, conv, msg); err != nil {
		return nil, err
	}
	return &dto.AudioResult{
		MessageID:     msg.ID,
		Sequence:      msg.Sequence,
		Transcription: judgment.Transcription,
		Status:        msg.ModerationStatus,
		Toxicity:      msg.Toxicity,
	}, nil
}

// ListMessages returns visible messages in sequence order.
func (s *ModerationService) ListMessages(ctx context.Context, principalID, conversationID string, page, pageSize int) (*dto.MessagePage, error) {
	conv, err := s.authorizedConversation(ctx, principalID, conversationID)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page > math.MaxInt32/pageSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "page is out of range")
	}

	cacheable := s.cache != nil && page == 1 && pageSize == defaultPageSize
	key := messagesCacheKey(conv.ID, conv.LastSequence)
	if cacheable {
		var cached dto.MessagePage
		if s.cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	items, err := s.repo.ListVisible(ctx, conv.ID, s.hiddenStatuses(), pageSize+1, (page-1)*pageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	result := &dto.MessagePage{Page: page, PageSize: pageSize}
	if len(items) > pageSize {
		result.HasMore = true
		items = items[:pageSize]
	}
	if items == nil {
		items = []models.Message{}
	}
	result.Messages = items

	if cacheable {
		s.cache.Set(ctx, key, result, s.cfg.ListCacheTTL)
	}
	return result, nil
}

// MarkRead records a read receipt. Blocked messages do not exist for readers.
func (s *ModerationService) MarkRead(ctx context.Context, principalID, messageID string) error {
	if _, err := uuid.Parse(messageID); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid message id")
	}
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load message")
	}
	if err := s.guard.Authorize(ctx, principalID, msg.FamilyUnitID); err != nil {
		return err
	}
	if msg.ModerationStatus == models.ModerationBlocked {
		return appErrors.Clone(appErrors.ErrNotFound, "message not found")
	}
	if err := s.repo.MarkRead(ctx, models.MessageRead{MessageID: msg.ID, ReaderID: principalID, ReadAt: time.Now().UTC()}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark message read")
	}
	return nil
}

// judgeText asks the classifier and falls back to the denylist on any failure.
func (s *ModerationService) judgeText(ctx context.Context, content string) verdict {
	if s.classifier == nil {
		return s.fallback(content)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ClassifierTimeout)
	defer cancel()

	start := time.Now()
	raw, err := s.classifier.ClassifyText(callCtx, textModerationPrompt, content)
	if err != nil {
		failure := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			failure = "timeout"
		}
		s.metrics.ObserveClassifier("text", time.Since(start), failure)
		s.logger.Warn("classifier unavailable, using fallback filter", zap.String("failure", failure), zap.Error(err))
		return s.fallback(content)
	}

	judgment, err := ParseJudgment(raw)
	if err != nil {
		s.metrics.ObserveClassifier("text", time.Since(start), "parse")
		s.logger.Warn("classifier answer unusable, using fallback filter", zap.Error(err))
		return s.fallback(content)
	}
	s.metrics.ObserveClassifier("text", time.Since(start), "")
	return verdict{Judgment: judgment, Source: models.SourceClassifier}
}

func (s *ModerationService) judgeAudio(ctx context.Context, audio []byte, mimeType string) (Judgment, error) {
	if s.classifier == nil {
		return Judgment{}, appErrors.ErrClassifierUnavailable
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ClassifierTimeout)
	defer cancel()

	start := time.Now()
	raw, err := s.classifier.ClassifyMedia(callCtx, audioModerationPrompt, audio, mimeType)
	if err != nil {
		s.metrics.ObserveClassifier("audio", time.Since(start), "error")
		s.logger.Warn("audio classification failed", zap.Error(err))
		return Judgment{}, err
	}
	judgment, err := ParseJudgment(raw)
	if err != nil {
		s.metrics.ObserveClassifier("audio", time.Since(start), "parse")
		s.logger.Warn("audio classifier answer unusable", zap.Error(err))
		return Judgment{}, err
	}
	s.metrics.ObserveClassifier("audio", time.Since(start), "")
	return judgment, nil
}

// fallback is total: every input yields a verdict.
func (s *ModerationService) fallback(content string) verdict {
	lowered := strings.ToLower(content)
	for _, word := range s.denylist {
		if strings.Contains(lowered, word) {
			return verdict{
				Judgment: Judgment{
					Toxicity: fallbackBlockedToxicity,
					Status:   models.ModerationBlocked,
					Reason:   fallbackBlockedRationale,
				},
				Source: models.SourceFallback,
			}
		}
	}
	return verdict{
		Judgment: Judgment{Status: models.ModerationAllowed, Reason: fallbackAllowedRationale},
		Source:   models.SourceFallback,
	}
}

func (s *ModerationService) append(ctx context.Context, msg *models.Message) error {
	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errFamilyAccessDenied
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store message")
	}
	return nil
}

// outcome applies the status policy to a stored message.
func (s *ModerationService) outcome(ctx context.Context, conv *models.Conversation, msg *models.Message) error {
	switch msg.ModerationStatus {
	case models.ModerationBlocked:
		s.logger.Info("message blocked",
			zap.String("conversation_id", conv.ID),
			zap.String("message_id", msg.ID),
			zap.String("source", string(msg.ModerationSource)))
		return rejected(msg.Rationale)
	case models.ModerationNeedsRewrite:
		if s.cfg.RewritePolicy == RewritePolicyHold {
			return appErrors.Clone(appErrors.ErrRewriteRequired, rewriteMessage(msg.Rationale))
		}
	}

	if s.cache != nil {
		s.cache.InvalidatePattern(context.WithoutCancel(ctx), "messages:"+conv.ID+":*")
	}
	s.notifier.NotifyFamily(ctx, conv.FamilyUnitID, msg.AuthorID,
		"Nova mensagem",
		fmt.Sprintf("Nova mensagem em '%s'.", conversationLabel(conv)),
		models.SeverityInfo)
	return nil
}

func (s *ModerationService) authorizedConversation(ctx context.Context, principalID, conversationID string) (*models.Conversation, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid conversation id")
	}
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "conversation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversation")
	}
	if err := s.guard.Authorize(ctx, principalID, conv.FamilyUnitID); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ModerationService) hiddenStatuses() []models.ModerationStatus {
	hidden := []models.ModerationStatus{models.ModerationBlocked}
	if s.cfg.RewritePolicy == RewritePolicyHold {
		hidden = append(hidden, models.ModerationNeedsRewrite)
	}
	return hidden
}

func (s *ModerationService) audioAllowed(mimeType string) bool {
	for _, allowed := range s.cfg.AudioAllowedMIMEs {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}

// messagesCacheKey holds the default-size first page of a conversation as of
// its last sequence, so a page built before an append is never served after it.
func messagesCacheKey(conversationID string, lastSequence int64) string {
	return fmt.Sprintf("messages:%s:%d", conversationID, lastSequence)
}

func rejected(reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "conteúdo impróprio"
	}
	return appErrors.Clone(appErrors.ErrModerationRejected, fmt.Sprintf("message blocked (mensagem bloqueada): %s", reason))
}

func rewriteMessage(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return appErrors.ErrRewriteRequired.Message
	}
	return fmt.Sprintf("%s: %s", appErrors.ErrRewriteRequired.Message, reason)
}

func conversationLabel(conv *models.Conversation) string {
	if conv.Title != "" {
		return conv.Title
	}
	return "conversa da família"
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

func audioExtension(mimeType string) string {
	switch mimeType {
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".webm"
	}
}
