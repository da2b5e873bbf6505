package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
	"github.com/mediare/family-trust-api/pkg/jobs"
)

const (
	jobTypeNotify       = "notify"
	jobTypeFamilyNotify = "notify_family"

	recentNotificationLimit = 20
	defaultEmergencyMessage = "EMERGÊNCIA MÉDICA ACIONADA"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListRecent(ctx context.Context, recipientID, familyID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string, readAt time.Time) error
	GetRecipient(ctx context.Context, userID string) (*models.Recipient, error)
}

type recipientDirectory interface {
	ListRecipients(ctx context.Context, familyID, exclude string) ([]models.Recipient, error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

type activeFamilyResolver interface {
	ActiveFamily(ctx context.Context, principalID string) (string, error)
}

// Notifier is the fire-and-forget surface the engines emit events through.
type Notifier interface {
	Notify(ctx context.Context, recipientID, familyID, title, body string, severity models.Severity)
	NotifyFamily(ctx context.Context, familyID, excludeID, title, body string, severity models.Severity)
}

// NotificationConfig holds dispatcher policy.
type NotificationConfig struct {
	EmergencyBypassSuppression bool
}

// notificationJob is the queued unit of work. An empty RecipientID fans out
// to every family member except ExcludeID.
type notificationJob struct {
	RecipientID string
	ExcludeID   string
	FamilyID    string
	Title       string
	Body        string
	Severity    models.Severity
	Bypass      bool
}

// NotificationService writes pull-based notifications from a background queue.
type NotificationService struct {
	repo      notificationRepository
	directory recipientDirectory
	queue     jobEnqueuer
	families  activeFamilyResolver
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       NotificationConfig
}

// NewNotificationService constructs the dispatcher. Call SetQueue before use;
// the queue's handler is the service's Handle method.
func NewNotificationService(repo notificationRepository, directory recipientDirectory, families activeFamilyResolver, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NotificationService{
		repo:      repo,
		directory: directory,
		families:  families,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// SetQueue attaches the queue jobs are dispatched to.
func (s *NotificationService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Notify queues a notification for one recipient. It never blocks and never
// fails the caller; suppression is applied when the job runs.
func (s *NotificationService) Notify(ctx context.Context, recipientID, familyID, title, body string, severity models.Severity) {
	s.dispatch(notificationJob{RecipientID: recipientID, FamilyID: familyID, Title: title, Body: body, Severity: severity})
}

// NotifyFamily queues a notification for every member of the family except excludeID.
func (s *NotificationService) NotifyFamily(ctx context.Context, familyID, excludeID, title, body string, severity models.Severity) {
	s.dispatch(notificationJob{ExcludeID: excludeID, FamilyID: familyID, Title: title, Body: body, Severity: severity})
}

// Broadcast raises an emergency alert from the principal to the rest of the
// active family. Whether suppressed members are reached is a configured policy.
func (s *NotificationService) Broadcast(ctx context.Context, principal *models.JWTClaims, req dto.EmergencyRequest) (*dto.EmergencyResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid emergency payload")
	}
	familyID, err := s.families.ActiveFamily(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	recipients, err := s.directory.ListRecipients(ctx, familyID, principal.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family members")
	}

	title := fmt.Sprintf("ALERTA GERAL: %s", principal.FullName)
	body := emergencyBody(req)
	result := &dto.EmergencyResult{}
	for _, rec := range recipients {
		if rec.SuppressionActive && !s.cfg.EmergencyBypassSuppression {
			result.Suppressed++
			s.metrics.RecordNotification(string(models.SeverityEmergency), "suppressed")
			continue
		}
		s.dispatch(notificationJob{
			RecipientID: rec.UserID,
			FamilyID:    familyID,
			Title:       title,
			Body:        body,
			Severity:    models.SeverityEmergency,
			Bypass:      s.cfg.EmergencyBypassSuppression,
		})
		result.Queued++
	}

	s.logger.Warn("emergency broadcast",
		zap.String("principal_id", principal.UserID),
		zap.String("family_unit_id", familyID),
		zap.Int("queued", result.Queued),
		zap.Int("suppressed", result.Suppressed))
	return result, nil
}

// ListRecent returns the principal's latest notifications in the active family.
func (s *NotificationService) ListRecent(ctx context.Context, principalID string) ([]models.Notification, error) {
	familyID, err := s.families.ActiveFamily(ctx, principalID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListRecent(ctx, principalID, familyID, recentNotificationLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// MarkRead stamps a notification owned by the principal as read.
func (s *NotificationService) MarkRead(ctx context.Context, principalID, notificationID string) error {
	if _, err := uuid.Parse(notificationID); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "invalid notification id")
	}
	if err := s.repo.MarkRead(ctx, notificationID, principalID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// Handle is the queue handler.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationJob)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if payload.RecipientID != "" {
		return s.deliver(ctx, payload)
	}

	recipients, err := s.directory.ListRecipients(ctx, payload.FamilyID, payload.ExcludeID)
	if err != nil {
		return fmt.Errorf("list recipients: %w", err)
	}
	for _, rec := range recipients {
		if rec.SuppressionActive && !payload.Bypass {
			s.suppressed(payload, rec.UserID)
			continue
		}
		single := payload
		single.RecipientID = rec.UserID
		s.dispatch(single)
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, payload notificationJob) error {
	if !payload.Bypass {
		rec, err := s.repo.GetRecipient(ctx, payload.RecipientID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				s.logger.Debug("notification recipient gone", zap.String("recipient_id", payload.RecipientID))
				return nil
			}
			return fmt.Errorf("load recipient: %w", err)
		}
		if rec.SuppressionActive {
			s.suppressed(payload, payload.RecipientID)
			return nil
		}
	}

	n := &models.Notification{
		RecipientID:  payload.RecipientID,
		FamilyUnitID: payload.FamilyID,
		Title:        payload.Title,
		Body:         payload.Body,
		Severity:     payload.Severity,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.metrics.RecordNotification(string(payload.Severity), "failed")
		return fmt.Errorf("create notification: %w", err)
	}
	s.metrics.RecordNotification(string(payload.Severity), "delivered")
	return nil
}

func (s *NotificationService) suppressed(payload notificationJob, recipientID string) {
	s.metrics.RecordNotification(string(payload.Severity), "suppressed")
	s.logger.Debug("notification suppressed", zap.String("recipient_id", recipientID), zap.String("severity", string(payload.Severity)))
}

func (s *NotificationService) dispatch(payload notificationJob) {
	if s.queue == nil {
		s.logger.Warn("notification queue not configured, dropping", zap.String("family_unit_id", payload.FamilyID))
		s.metrics.RecordNotification(string(payload.Severity), "dropped")
		return
	}
	jobType := jobTypeNotify
	if payload.RecipientID == "" {
		jobType = jobTypeFamilyNotify
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: payload}); err != nil {
		s.logger.Warn("notification dropped", zap.String("family_unit_id", payload.FamilyID), zap.String("recipient_id", payload.RecipientID), zap.Error(err))
		s.metrics.RecordNotification(string(payload.Severity), "dropped")
	}
}

func emergencyBody(req dto.EmergencyRequest) string {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		msg = defaultEmergencyMessage
	}
	if req.Latitude != nil && req.Longitude != nil {
		return fmt.Sprintf("%s. Coordenadas: %.6f, %.6f", msg, *req.Latitude, *req.Longitude)
	}
	return msg
}
