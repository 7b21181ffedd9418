// Package watch is a terminal live view of a conversation room.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"conference/services/orchestrator/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	leftStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	rightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true)

	moderatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// Sender delivers a command to the room.
type Sender func(cmd models.Command) error

type eventMsg models.Event

type streamClosedMsg struct{}

type sentMsg struct{ err error }

// Model is the bubbletea model of the watch view.
type Model struct {
	roomID string
	events <-chan models.Event
	send   Sender

	viewport viewport.Model
	input    textinput.Model
	ready    bool
	width    int
	height   int

	lines    []string
	state    models.RoomState
	topic    string
	mode     string
	turns    int
	max      int
	emotions map[models.Speaker]models.Emotion
	errText  string
	closed   bool
}

func New(roomID string, events <-chan models.Event, send Sender) Model {
	in := textinput.New()
	in.Placeholder = "Type a moderator message and press enter"
	in.CharLimit = 500
	in.Focus()

	return Model{
		roomID:   roomID,
		events:   events,
		send:     send,
		input:    in,
		state:    models.StateIdle,
		emotions: map[models.Speaker]models.Emotion{},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events))
}

func waitForEvent(ch <-chan models.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) sendCmd(cmd models.Command) tea.Cmd {
	if m.send == nil {
		return nil
	}
	cmd.CommandID = uuid.New().String()
	cmd.RoomID = m.roomID
	cmd.Timestamp = time.Now().UTC()
	return func() tea.Msg {
		return sentMsg{err: m.send(cmd)}
	}
}

// keyCommand maps a key press to the room command it triggers.
func (m Model) keyCommand(msg tea.KeyMsg) (models.Command, bool) {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return models.Command{}, false
		}
		return models.Command{Type: models.CommandInject, Text: text}, true
	case "ctrl+p":
		if m.state == models.StateActive {
			return models.Command{Type: models.CommandPause}, true
		}
		return models.Command{Type: models.CommandResume}, true
	case "ctrl+r":
		return models.Command{Type: models.CommandRetry}, true
	}
	return models.Command{}, false
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			return m, tea.Quit
		}
		if cmd, ok := m.keyCommand(msg); ok {
			if cmd.Type == models.CommandInject {
				m.input.SetValue("")
			}
			cmds = append(cmds, m.sendCmd(cmd))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 3
		footerHeight := 4
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.input.Width = msg.Width - 6
		m.refresh()

	case eventMsg:
		m.apply(models.Event(msg))
		m.refresh()
		cmds = append(cmds, waitForEvent(m.events))

	case streamClosedMsg:
		m.closed = true

	case sentMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) apply(ev models.Event) {
	switch ev.Type {
	case models.EventState:
		m.state = ev.State
		if ev.State == models.StateActive {
			m.errText = ""
		}
	case models.EventMessage:
		if ev.Message != nil {
			m.lines = append(m.lines, RenderMessage(*ev.Message))
			if ev.Message.Speaker.IsAI() {
				m.turns++
				m.errText = ""
			}
		}
	case models.EventEmotion:
		if ev.Emotion != nil {
			m.emotions[ev.Speaker] = *ev.Emotion
		}
	case models.EventError:
		m.errText = ev.Error
	case models.EventCleared:
		m.lines = nil
		m.turns = 0
		m.topic = ""
		m.emotions = map[models.Speaker]models.Emotion{}
	case models.EventSnapshot:
		if ev.Snapshot != nil {
			m.applySnapshot(*ev.Snapshot)
		}
	}
}

func (m *Model) applySnapshot(s models.Snapshot) {
	m.state = s.State
	m.topic = s.Topic
	m.mode = s.Mode
	m.turns = s.Turns
	m.max = s.MaxMessages
	m.errText = s.Error
	m.lines = m.lines[:0]
	for _, msg := range s.Messages {
		m.lines = append(m.lines, RenderMessage(msg))
	}
	for k, v := range s.Emotions {
		m.emotions[k] = v
	}
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n\n"))
	m.viewport.GotoBottom()
}

// RenderMessage formats one transcript entry for the terminal.
func RenderMessage(msg models.Message) string {
	var name string
	switch msg.Speaker {
	case models.SpeakerLeft:
		name = leftStyle.Render(msg.Speaker.Label())
	case models.SpeakerRight:
		name = rightStyle.Render(msg.Speaker.Label())
	default:
		name = moderatorStyle.Render(msg.Speaker.Label())
	}
	ts := timeStyle.Render(msg.Timestamp.Local().Format("15:04:05"))
	return fmt.Sprintf("%s %s\n%s", name, ts, msg.Text)
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Connecting..."
	}

	var b strings.Builder
	title := "Conference room " + m.roomID
	if m.topic != "" {
		title += ": " + m.topic
	}
	b.WriteString(titleStyle.Render(title) + "\n")
	b.WriteString(statusStyle.Render(m.status()) + "\n\n")
	b.WriteString(m.viewport.View() + "\n")
	if m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText) + "\n")
	}
	b.WriteString(inputStyle.Render(m.input.View()))
	return b.String()
}

func (m Model) status() string {
	parts := []string{string(m.state)}
	if m.mode != "" {
		parts = append(parts, m.mode)
	}
	if m.max > 0 {
		parts = append(parts, fmt.Sprintf("turn %d/%d", m.turns, m.max))
	}
	for _, sp := range []models.Speaker{models.SpeakerLeft, models.SpeakerRight} {
		if e, ok := m.emotions[sp]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", sp.Label(), e.Label))
		}
	}
	if m.closed {
		parts = append(parts, "disconnected")
	}
	parts = append(parts, "ctrl+p pause/resume", "ctrl+r retry", "esc quit")
	return strings.Join(parts, " | ")
}

// Run starts the view and blocks until the user quits or ctx ends.
func Run(ctx context.Context, roomID string, events <-chan models.Event, send Sender) error {
	p := tea.NewProgram(New(roomID, events, send), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
