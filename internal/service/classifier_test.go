package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediare/family-trust-api/internal/models"
)

func TestParseJudgmentStripsFences(t *testing.T) {
	cases := map[string]string{
		"plain":       `{"toxicity_score":0.9,"sentiment_score":-0.8,"status":"blocked","reason":"Ofensivo"}`,
		"json fence":  "```json\n{\"toxicity_score\":0.9,\"sentiment_score\":-0.8,\"status\":\"blocked\",\"reason\":\"Ofensivo\"}\n```",
		"bare fence":  "```\n{\"toxicity_score\":0.9,\"sentiment_score\":-0.8,\"status\":\"blocked\",\"reason\":\"Ofensivo\"}\n```",
		"inline":      "```{\"toxicity_score\":0.9,\"sentiment_score\":-0.8,\"status\":\"blocked\",\"reason\":\"Ofensivo\"}```",
		"inline json": "```json {\"toxicity_score\":0.9,\"sentiment_score\":-0.8,\"status\":\"blocked\",\"reason\":\"Ofensivo\"}```",
		"lead prose":  "Aqui está a análise:\n```json\n{\"toxicity_score\":0.9,\"sentiment_score\":-0.8,\"status\":\"blocked\",\"reason\":\"Ofensivo\"}\n```\nAté mais.",
		"bare braces": "Resultado: {\"toxicity_score\":0.9,\"sentiment_score\":-0.8,\"status\":\"blocked\",\"reason\":\"Ofensivo\"} fim",
		"padded text": "  \n```json\n{\"toxicity_score\":0.9,\"sentiment_score\":-0.8,\"status\":\"BLOCKED\",\"reason\":\"Ofensivo\"}\n```  ",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			j, err := ParseJudgment(raw)
			require.NoError(t, err)
			assert.Equal(t, models.ModerationBlocked, j.Status)
			assert.Equal(t, 0.9, j.Toxicity)
			assert.Equal(t, -0.8, j.Sentiment)
			assert.Equal(t, "Ofensivo", j.Reason)
		})
	}
}

func TestParseJudgmentClampsScores(t *testing.T) {
	j, err := ParseJudgment(`{"toxicity_score":1.7,"sentiment_score":-3,"status":"allowed","reason":""}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, j.Toxicity)
	assert.Equal(t, -1.0, j.Sentiment)
}

func TestParseJudgmentFailures(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"prose":          "Esta mensagem parece ok.",
		"unknown status": `{"toxicity_score":0.1,"status":"maybe"}`,
		"missing status": `{"toxicity_score":0.1}`,
		"missing score":  `{"status":"allowed"}`,
		"truncated":      "```json\n{\"toxicity_score\":0.1,",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJudgment(raw)
			var failure *ParseFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, raw, failure.Raw)
		})
	}
}

func TestParseJudgmentKeepsTranscription(t *testing.T) {
	j, err := ParseJudgment(`{"transcription":" Oi pai ","toxicity_score":0,"status":"allowed","reason":""}`)
	require.NoError(t, err)
	assert.Equal(t, "Oi pai", j.Transcription)
	assert.Zero(t, j.Sentiment)
}
