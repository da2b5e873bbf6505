// Package classifier builds the content classifier used by moderation.
package classifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mediare/family-trust-api/internal/service"
	"github.com/mediare/family-trust-api/pkg/config"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

// Unavailable always fails, sending every message through the local fallback.
type Unavailable struct{}

// ClassifyText implements service.ClassifierPort.
func (Unavailable) ClassifyText(ctx context.Context, prompt, content string) (string, error) {
	return "", appErrors.ErrClassifierUnavailable
}

// ClassifyMedia implements service.ClassifierPort.
func (Unavailable) ClassifyMedia(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	return "", appErrors.ErrClassifierUnavailable
}

// New constructs the classifier selected by cfg.Provider. A missing API key
// for the Gemini backend degrades to Unavailable with a warning.
func New(ctx context.Context, cfg config.ClassifierConfig, logger *zap.Logger) (service.ClassifierPort, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var clientCfg *genai.ClientConfig
	switch cfg.Provider {
	case config.ClassifierNone:
		logger.Info("classifier disabled, moderation uses the local denylist")
		return Unavailable{}, nil
	case config.ClassifierGemini, "":
		if cfg.APIKey == "" {
			logger.Warn("GOOGLE_API_KEY not set, moderation uses the local denylist")
			return Unavailable{}, nil
		}
		clientCfg = &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	case config.ClassifierVertex:
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("vertex classifier requires VERTEX_PROJECT and VERTEX_LOCATION")
		}
		clientCfg = &genai.ClientConfig{Project: cfg.Project, Location: cfg.Location, Backend: genai.BackendVertexAI}
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	logger.Info("classifier ready", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))
	return newGemini(client.Models, cfg.Model, logger), nil
}
