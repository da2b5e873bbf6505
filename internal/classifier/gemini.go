package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini classifies text and media through the generative models API. It
// returns the raw model answer; callers parse it.
type Gemini struct {
	models generator
	model  string
	logger *zap.Logger
}

func newGemini(models generator, model string, logger *zap.Logger) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{models: models, model: model, logger: logger}
}

// ClassifyText sends the prompt followed by the message content.
func (g *Gemini) ClassifyText(ctx context.Context, prompt, content string) (string, error) {
	contents := genai.Text(prompt + "\n\nMensagem: \"" + content + "\"")
	return g.generate(ctx, contents)
}

// ClassifyMedia sends the prompt with the inline media payload.
func (g *Gemini) ClassifyMedia(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "media payload is empty")
	}
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(data, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	return g.generate(ctx, contents)
}

func (g *Gemini) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		g.logger.Warn("classifier request failed", zap.String("model", g.model), zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrClassifierUnavailable.Code, appErrors.ErrClassifierUnavailable.Status, "classifier request failed")
	}
	if resp == nil {
		return "", appErrors.Clone(appErrors.ErrClassifierUnavailable, "classifier returned no response")
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", appErrors.Clone(appErrors.ErrClassifierUnavailable, fmt.Sprintf("classifier %s returned an empty answer", g.model))
	}
	return text, nil
}
