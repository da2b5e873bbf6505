package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/mediare/family-trust-api/internal/service"
	"github.com/mediare/family-trust-api/pkg/config"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

type generatorStub struct {
	answer   string
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (s *generatorStub) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.model = model
	s.contents = contents
	s.config = config
	if s.err != nil {
		return nil, s.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: s.answer}}},
		}},
	}, nil
}

var _ service.ClassifierPort = (*Gemini)(nil)
var _ service.ClassifierPort = Unavailable{}

func TestGeminiClassifyTextReturnsRawAnswer(t *testing.T) {
	stub := &generatorStub{answer: ` {"toxicity_score":0.1,"sentiment_score":0.4,"status":"allowed","reason":"ok"} `}
	g := newGemini(stub, "", nil)

	raw, err := g.ClassifyText(context.Background(), "prompt", "Bom dia")
	require.NoError(t, err)
	assert.Equal(t, `{"toxicity_score":0.1,"sentiment_score":0.4,"status":"allowed","reason":"ok"}`, raw)
	assert.Equal(t, DefaultModel, stub.model)
	assert.Equal(t, "application/json", stub.config.ResponseMIMEType)
	require.Len(t, stub.contents, 1)
	assert.Contains(t, stub.contents[0].Parts[0].Text, "Bom dia")

	judgment, err := service.ParseJudgment(raw)
	require.NoError(t, err)
	assert.Equal(t, "ok", judgment.Reason)
}

func TestGeminiClassifyMediaSendsInlineData(t *testing.T) {
	stub := &generatorStub{answer: `{"transcription":"oi","toxicity_score":0,"status":"allowed"}`}
	g := newGemini(stub, "gemini-test", nil)

	_, err := g.ClassifyMedia(context.Background(), "prompt", []byte{1, 2, 3}, "audio/webm")
	require.NoError(t, err)
	require.Len(t, stub.contents, 1)
	parts := stub.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "audio/webm", parts[1].InlineData.MIMEType)
	assert.Equal(t, "gemini-test", stub.model)

	_, err = g.ClassifyMedia(context.Background(), "prompt", nil, "audio/webm")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestGeminiFailuresAreUnavailable(t *testing.T) {
	g := newGemini(&generatorStub{err: errors.New("quota exceeded")}, "", nil)
	_, err := g.ClassifyText(context.Background(), "prompt", "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrClassifierUnavailable))

	g = newGemini(&generatorStub{answer: "   "}, "", nil)
	_, err = g.ClassifyText(context.Background(), "prompt", "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrClassifierUnavailable))
}

func TestNewSelectsProvider(t *testing.T) {
	port, err := New(context.Background(), config.ClassifierConfig{Provider: config.ClassifierNone}, nil)
	require.NoError(t, err)
	assert.IsType(t, Unavailable{}, port)

	port, err = New(context.Background(), config.ClassifierConfig{Provider: config.ClassifierGemini}, nil)
	require.NoError(t, err)
	assert.IsType(t, Unavailable{}, port)

	_, err = New(context.Background(), config.ClassifierConfig{Provider: config.ClassifierVertex}, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), config.ClassifierConfig{Provider: "openai"}, nil)
	assert.Error(t, err)

	_, err = Unavailable{}.ClassifyText(context.Background(), "p", "c")
	assert.True(t, appErrors.Is(err, appErrors.ErrClassifierUnavailable))
}
