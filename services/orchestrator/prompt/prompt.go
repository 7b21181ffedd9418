// Package prompt builds the LLM prompts for conversation turns and
// emotion analysis.
package prompt

import (
	"fmt"
	"strings"

	"conference/services/orchestrator/models"
	"conference/services/orchestrator/modes"
)

// RecentWindow is how many transcript entries a continuation prompt quotes.
const RecentWindow = 3

// Opening builds the prompt for the first turn of a conversation.
func Opening(mode modes.Mode, timeOfDay, topic string) string {
	return fmt.Sprintf(
		"%s You are discussing %q. %s\n\nStart the conversation with an engaging opening statement. Be %s. Keep your response to 2-3 sentences maximum.",
		mode.SystemPrompt, topic, mode.Context(timeOfDay), mode.PromptStyle,
	)
}

// Continuation builds the prompt for a follow-up turn by speaker.
func Continuation(mode modes.Mode, timeOfDay, topic string, speaker models.Speaker, history []models.Message) string {
	return fmt.Sprintf(
		"%s Continue this discussion about %q. %s\n\nRecent exchange:\n%s\n\nYou are %s. Respond thoughtfully, being %s. Keep to 2-3 sentences maximum.",
		mode.SystemPrompt, topic, mode.Context(timeOfDay), Recent(history), speaker.Label(), mode.PromptStyle,
	)
}

// Recent renders the last RecentWindow messages as speaker-labelled lines.
func Recent(history []models.Message) string {
	start := len(history) - RecentWindow
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, RecentWindow)
	for _, m := range history[start:] {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Speaker.Label(), m.Text))
	}
	return strings.Join(lines, "\n\n")
}

// Emotion builds the sentiment classification prompt for a message.
func Emotion(text string) string {
	return fmt.Sprintf(
		"Analyze the emotional tone of this message briefly: %q\n\nProvide a JSON response with:\n- primary_emotion: one of \"positive\", \"neutral\", \"negative\", \"critical\"\n- confidence: percentage (0-100)\n- stats: object with percentages for positive, neutral, negative, critical, engagement, clarity",
		text,
	)
}
