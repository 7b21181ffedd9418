package watch

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference/services/orchestrator/models"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestModelAppliesEvents(t *testing.T) {
	events := make(chan models.Event)
	m := New("r1", events, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, _ = update(t, m, eventMsg{Type: models.EventState, State: models.StateActive})
	m, _ = update(t, m, eventMsg{Type: models.EventMessage, Message: &models.Message{
		Speaker:   models.SpeakerLeft,
		Text:      "Welcome to the debate.",
		Timestamp: time.Now(),
	}})
	m, _ = update(t, m, eventMsg{Type: models.EventEmotion, Speaker: models.SpeakerLeft, Emotion: &models.Emotion{Label: models.EmotionPositive}})
	m, _ = update(t, m, eventMsg{Type: models.EventError, Error: "Connection issue. Retrying..."})

	view := m.View()
	assert.Contains(t, view, "Welcome to the debate.")
	assert.Contains(t, view, "Alice")
	assert.Contains(t, view, "Alice: positive")
	assert.Contains(t, view, "Connection issue")
	assert.Equal(t, 1, m.turns)

	m, _ = update(t, m, eventMsg{Type: models.EventCleared})
	assert.Empty(t, m.lines)
	assert.NotContains(t, m.View(), "Welcome to the debate.")
}

func TestModelAppliesSnapshot(t *testing.T) {
	m := New("r1", nil, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m, _ = update(t, m, eventMsg{Type: models.EventSnapshot, Snapshot: &models.Snapshot{
		State:       models.StatePaused,
		Topic:       "Mars",
		Mode:        "podcast",
		Turns:       2,
		MaxMessages: 15,
		Messages: []models.Message{
			{Speaker: models.SpeakerLeft, Text: "one"},
			{Speaker: models.SpeakerModerator, Text: "focus please"},
			{Speaker: models.SpeakerRight, Text: "two"},
		},
	}})

	view := m.View()
	assert.Contains(t, view, "Mars")
	assert.Contains(t, view, "turn 2/15")
	assert.Contains(t, view, "Moderator")
	assert.Len(t, m.lines, 3)
}

func TestEnterSendsInject(t *testing.T) {
	var sent []models.Command
	m := New("r1", nil, func(cmd models.Command) error {
		sent = append(sent, cmd)
		return nil
	})
	m.input.SetValue("  Please stay on topic ")

	cmd, ok := m.keyCommand(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, ok)
	assert.Equal(t, models.CommandInject, cmd.Type)
	assert.Equal(t, "Please stay on topic", cmd.Text)

	msg := m.sendCmd(cmd)()
	assert.Equal(t, sentMsg{}, msg)
	require.Len(t, sent, 1)
	assert.Equal(t, "r1", sent[0].RoomID)
	assert.False(t, sent[0].Timestamp.IsZero())
	_, err := uuid.Parse(sent[0].CommandID)
	assert.NoError(t, err)

	m.sendCmd(models.Command{Type: models.CommandPause})()
	require.Len(t, sent, 2)
	assert.NotEqual(t, sent[0].CommandID, sent[1].CommandID)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.input.Value())

	_, ok = m.keyCommand(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, ok, "blank input sends nothing")
}

func TestPauseToggle(t *testing.T) {
	m := New("r1", nil, nil)

	m.state = models.StateActive
	cmd, ok := m.keyCommand(tea.KeyMsg{Type: tea.KeyCtrlP})
	require.True(t, ok)
	assert.Equal(t, models.CommandPause, cmd.Type)

	m.state = models.StatePaused
	cmd, _ = m.keyCommand(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, models.CommandResume, cmd.Type)

	cmd, _ = m.keyCommand(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Equal(t, models.CommandRetry, cmd.Type)
}

func TestSendErrorIsShown(t *testing.T) {
	m := New("r1", nil, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	m, _ = update(t, m, sentMsg{err: assert.AnError})
	assert.Contains(t, m.View(), assert.AnError.Error())
}
