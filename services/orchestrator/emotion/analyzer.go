// Package emotion classifies the sentiment of a produced message. Results
// are advisory and only drive the per-side indicators.
package emotion

import (
	"context"
	"fmt"
	"time"

	"conference/services/orchestrator/llm"
	"conference/services/orchestrator/models"
	"conference/services/orchestrator/prompt"
)

// StatNames are the stats the model is asked to score.
var StatNames = []string{"positive", "neutral", "negative", "critical", "engagement", "clarity"}

// Schema is the structured response requested from the LLM.
var Schema = llm.Schema{
	"type": "object",
	"properties": map[string]any{
		"primary_emotion": map[string]any{
			"type": "string",
			"enum": []string{"positive", "neutral", "negative", "critical"},
		},
		"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
		"stats": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"positive":   map[string]any{"type": "number"},
				"neutral":    map[string]any{"type": "number"},
				"negative":   map[string]any{"type": "number"},
				"critical":   map[string]any{"type": "number"},
				"engagement": map[string]any{"type": "number"},
				"clarity":    map[string]any{"type": "number"},
			},
		},
	},
}

type analysis struct {
	PrimaryEmotion string             `json:"primary_emotion"`
	Confidence     float64            `json:"confidence"`
	Stats          map[string]float64 `json:"stats"`
}

// Analyzer runs the secondary sentiment call.
type Analyzer struct {
	client  llm.Client
	timeout time.Duration
}

func NewAnalyzer(client llm.Client, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Analyzer{client: client, timeout: timeout}
}

// Analyze classifies text. Unknown labels become neutral and percentages
// are clamped to 0-100.
func (a *Analyzer) Analyze(ctx context.Context, text string) (models.Emotion, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var res analysis
	if err := a.client.CompleteJSON(ctx, prompt.Emotion(text), Schema, &res); err != nil {
		return models.Emotion{}, fmt.Errorf("emotion analysis failed: %w", err)
	}

	label := models.EmotionLabel(res.PrimaryEmotion)
	if !models.ValidEmotion(label) {
		label = models.EmotionNeutral
	}
	stats := make(map[string]float64, len(res.Stats))
	for k, v := range res.Stats {
		stats[k] = clamp(v)
	}
	return models.Emotion{
		Label:      label,
		Confidence: clamp(res.Confidence),
		Stats:      stats,
	}, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
