package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mediare/family-trust-api/internal/dto"
	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
	"github.com/mediare/family-trust-api/pkg/export"
	"github.com/mediare/family-trust-api/pkg/storage"
)

type ledgerHistory interface {
	History(ctx context.Context, principalID, childID string) ([]models.PointDelta, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportConfig tunes statement exports.
type ExportConfig struct {
	APIPrefix      string
	ResultTTL      time.Duration
	PointsPerLevel int
}

// Download is an opened statement ready to stream.
type Download struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ExportService renders child ledger statements to stored files reachable
// through signed, expiring download links.
type ExportService struct {
	ledger  ledgerHistory
	storage fileStorage
	signer  *storage.SignedURLSigner
	csv     datasetRenderer
	pdf     datasetRenderer
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(ledger ledgerHistory, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.PointsPerLevel <= 0 {
		cfg.PointsPerLevel = DefaultPointsPerLevel
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		ledger:  ledger,
		storage: store,
		signer:  signer,
		csv:     csv,
		pdf:     pdf,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Statement renders the child's ledger with running level and points.
// Membership is checked by the ledger read.
func (s *ExportService) Statement(ctx context.Context, principalID, childID string, format dto.StatementFormat) (*dto.StatementResult, error) {
	renderer, err := s.renderer(format)
	if err != nil {
		return nil, err
	}
	deltas, err := s.ledger.History(ctx, principalID, childID)
	if err != nil {
		return nil, err
	}

	dataset, err := statementDataset(childID, deltas, s.cfg.PointsPerLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ledger history is inconsistent")
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}

	filename := path.Join("statements", childID, fmt.Sprintf("%d.%s", s.now().UTC().UnixNano(), format))
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store statement")
	}
	token, expiresAt, err := s.signer.Generate(childID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign statement link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("statement exported", zap.String("child_id", childID), zap.String("format", string(format)), zap.Int("deltas", len(deltas)))
	return &dto.StatementResult{
		Format:    format,
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open resolves a download token. Invalid and expired tokens are both
// reported as not found.
func (s *ExportService) Open(token string) (*Download, error) {
	childID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download link not found")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "statement not found")
	}

	contentType := s.csv.ContentType()
	if strings.HasSuffix(relPath, "."+string(dto.StatementPDF)) {
		contentType = s.pdf.ContentType()
	}
	return &Download{
		File:        file,
		Filename:    fmt.Sprintf("extrato-%s%s", childID, path.Ext(relPath)),
		ContentType: contentType,
	}, nil
}

// Cleanup removes stored statements older than the result TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) renderer(format dto.StatementFormat) (datasetRenderer, error) {
	switch format {
	case dto.StatementCSV:
		return s.csv, nil
	case dto.StatementPDF:
		return s.pdf, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
}

// statementDataset folds deltas exactly like a replay, recording the state
// after each entry.
func statementDataset(childID string, deltas []models.PointDelta, perLevel int) (export.Dataset, error) {
	rows := make([][]string, 0, len(deltas))
	agg := models.LevelAggregate{Level: 1}
	for i, d := range deltas {
		if d.Sequence != int64(i+1) {
			return export.Dataset{}, fmt.Errorf("sequence gap at %d", d.Sequence)
		}
		var err error
		if d.Amount >= 0 {
			agg, _ = applyAward(agg, d.Amount, perLevel)
		} else if agg, err = applyRedeem(agg, -d.Amount); err != nil {
			return export.Dataset{}, err
		}
		rows = append(rows, []string{
			strconv.FormatInt(d.Sequence, 10),
			d.CreatedAt.UTC().Format("2006-01-02 15:04"),
			strconv.Itoa(d.Amount),
			d.Reason,
			strconv.Itoa(agg.Level),
			strconv.Itoa(agg.Points),
		})
	}
	return export.Dataset{
		Title: "Extrato de pontos",
		Summary: []string{
			fmt.Sprintf("Criança: %s", childID),
			fmt.Sprintf("Nível atual: %d, pontos: %d", agg.Level, agg.Points),
			fmt.Sprintf("Lançamentos: %d", len(deltas)),
		},
		Headers: []string{"Sequência", "Data", "Pontos", "Motivo", "Nível", "Saldo"},
		Rows:    rows,
	}, nil
}
