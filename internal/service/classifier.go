package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mediare/family-trust-api/internal/models"
)

// ClassifierPort is the boundary to the external content classifier. Both
// calls return the provider's raw answer; parsing belongs to the caller.
type ClassifierPort interface {
	ClassifyText(ctx context.Context, prompt, content string) (string, error)
	ClassifyMedia(ctx context.Context, prompt string, data []byte, mimeType string) (string, error)
}

const textModerationPrompt = `Analise a seguinte mensagem em um contexto de chat familiar (pais divorciados/filhos, monitorado judicialmente).

Retorne APENAS um JSON (sem markdown, sem aspas triplas) com os campos:
- toxicity_score: float (0.0 a 1.0, onde 1.0 é extremamente tóxico/ofensivo)
- sentiment_score: float (-1.0 negativo a 1.0 positivo)
- reason: str (breve explicação)
- status: str ("allowed", "needs_rewrite", "blocked")`

const audioModerationPrompt = `Você é um moderador de chat familiar e transcritor inteligente.
Analise o áudio anexado. Sua missão é:
1. Transcrever o áudio fielmente.
2. Analisar a toxicidade e o sentimento.

Retorne APENAS um JSON (sem markdown) com os campos:
- transcription: str (o texto falado)
- toxicity_score: float (0.0 a 1.0)
- sentiment_score: float (-1.0 negativo a 1.0 positivo)
- status: str ("allowed", "needs_rewrite", "blocked")
- reason: str (breve explicação se bloqueado)`

// Judgment is a well-formed classifier verdict.
type Judgment struct {
	Toxicity      float64
	Sentiment     float64
	Status        models.ModerationStatus
	Reason        string
	Transcription string
}

// ParseFailure describes why a classifier answer could not be used.
type ParseFailure struct {
	Raw    string
	Reason string
}

func (f *ParseFailure) Error() string {
	return "unusable classifier answer: " + f.Reason
}

type rawJudgment struct {
	Toxicity      *float64 `json:"toxicity_score"`
	Sentiment     *float64 `json:"sentiment_score"`
	Status        string   `json:"status"`
	Reason        string   `json:"reason"`
	Transcription string   `json:"transcription"`
}

// ParseJudgment strips markdown fences from raw and decodes it. Any problem
// yields a *ParseFailure and a zero Judgment.
func ParseJudgment(raw string) (Judgment, error) {
	body := stripFences(raw)
	if body == "" {
		return Judgment{}, &ParseFailure{Raw: raw, Reason: "empty answer"}
	}

	var decoded rawJudgment
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return Judgment{}, &ParseFailure{Raw: raw, Reason: fmt.Sprintf("invalid json: %v", err)}
	}

	status := models.ModerationStatus(strings.ToLower(strings.TrimSpace(decoded.Status)))
	if !status.Valid() {
		return Judgment{}, &ParseFailure{Raw: raw, Reason: fmt.Sprintf("unknown status %q", decoded.Status)}
	}
	if decoded.Toxicity == nil {
		return Judgment{}, &ParseFailure{Raw: raw, Reason: "missing toxicity_score"}
	}

	judgment := Judgment{
		Toxicity:      clamp(*decoded.Toxicity, 0, 1),
		Status:        status,
		Reason:        strings.TrimSpace(decoded.Reason),
		Transcription: strings.TrimSpace(decoded.Transcription),
	}
	if decoded.Sentiment != nil {
		judgment.Sentiment = clamp(*decoded.Sentiment, -1, 1)
	}
	return judgment, nil
}

// stripFences extracts the JSON object from a model answer. The first ``` or
// ```json block is used wherever it appears, and anything outside the
// outermost braces is dropped.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if start := strings.Index(s, "```"); start >= 0 {
		block := s[start+3:]
		if len(block) >= 4 && strings.EqualFold(block[:4], "json") {
			block = block[4:]
		}
		if end := strings.Index(block, "```"); end >= 0 {
			block = block[:end]
		}
		s = strings.TrimSpace(block)
	}
	if first, last := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); first >= 0 && last > first {
		s = s[first : last+1]
	}
	return strings.TrimSpace(s)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
