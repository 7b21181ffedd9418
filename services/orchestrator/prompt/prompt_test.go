package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"conference/services/orchestrator/models"
	"conference/services/orchestrator/modes"
)

func msg(s models.Speaker, text string) models.Message {
	return models.Message{Speaker: s, Text: text, Timestamp: time.Now()}
}

func TestOpening(t *testing.T) {
	m, _ := modes.Get(modes.Conference)
	p := Opening(m, "night", "Mars Settlement Ethics")

	assert.True(t, strings.HasPrefix(p, m.SystemPrompt))
	assert.Contains(t, p, `"Mars Settlement Ethics"`)
	assert.Contains(t, p, "engaging opening statement")
	assert.Contains(t, p, "Be professional and engaging.")
	assert.Contains(t, p, "2-3 sentences")
}

func TestContinuationUsesLastThree(t *testing.T) {
	m, _ := modes.Get(modes.Storytelling)
	history := []models.Message{
		msg(models.SpeakerLeft, "one"),
		msg(models.SpeakerRight, "two"),
		msg(models.SpeakerModerator, "stay on topic"),
		msg(models.SpeakerLeft, "four"),
	}

	p := Continuation(m, "dawn", "Dragons", models.SpeakerRight, history)

	assert.NotContains(t, p, "Alice: one")
	assert.Contains(t, p, "Bob: two\n\nModerator: stay on topic\n\nAlice: four")
	assert.Contains(t, p, "You are Bob.")
	assert.Contains(t, p, "It's dawn time.")
	assert.Contains(t, p, "2-3 sentences")
}

func TestRecentShortHistory(t *testing.T) {
	assert.Equal(t, "", Recent(nil))
	assert.Equal(t, "Alice: hi", Recent([]models.Message{msg(models.SpeakerLeft, "hi")}))
}

func TestEmotionQuotesMessage(t *testing.T) {
	p := Emotion(`she said "no"`)
	assert.Contains(t, p, `"she said \"no\""`)
	assert.Contains(t, p, "primary_emotion")
}
