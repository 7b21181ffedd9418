// Package render formats conversations and room state for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"conference/services/orchestrator/models"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
}

func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Transcript formats a stored conversation with all its messages.
func (r *Renderer) Transcript(conv *models.Conversation) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("%s\n", conv.Title))
		fmt.Fprintf(&sb, "%s  %s  %s vs %s\n", color.HiBlackString("%s", conv.ID), statusString(conv.Status), conv.LeftModel, conv.RightModel)
		sb.WriteString(strings.Repeat("─", 60) + "\n\n")
	} else {
		fmt.Fprintf(&sb, "%s [%s] %s\n", conv.ID, conv.Status, conv.Title)
	}

	if len(conv.Messages) == 0 {
		sb.WriteString("No messages\n")
		return sb.String()
	}

	for _, m := range conv.Messages {
		ts := m.Timestamp.Local().Format("15:04:05")
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %s\n%s\n\n", speakerString(m.Speaker), color.HiBlackString("%s", ts), color.HiBlackString("(%s)", m.ModelUsed), m.Text)
		} else {
			fmt.Fprintf(&sb, "[%s] %s: %s\n", ts, m.Speaker.Label(), m.Text)
		}
	}
	return sb.String()
}

// Conversations formats a list of stored conversations.
func (r *Renderer) Conversations(convs []*models.Conversation) string {
	if len(convs) == 0 {
		return "No conversations found\n"
	}

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Conversations\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}
	for _, c := range convs {
		created := c.CreatedAt.Local().Format("2006-01-02 15:04")
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %-9s %3d msgs  %s\n", color.HiBlackString("%s", created), c.ID, statusString(c.Status), len(c.Messages), c.Title)
		} else {
			fmt.Fprintf(&sb, "%s\t%s\t%s\t%d\t%s\n", created, c.ID, c.Status, len(c.Messages), c.Title)
		}
	}
	return sb.String()
}

// Rooms formats live room snapshots.
func (r *Renderer) Rooms(rooms []models.Snapshot) string {
	if len(rooms) == 0 {
		return "No rooms\n"
	}

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Rooms\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}
	for _, s := range rooms {
		topic := s.Topic
		if topic == "" {
			topic = "-"
		}
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %s %d/%d  %s\n", s.RoomID, stateString(s.State), color.HiBlackString("%s", s.Mode), s.Turns, s.MaxMessages, topic)
			if s.Error != "" {
				sb.WriteString("  " + color.RedString("%s", s.Error) + "\n")
			}
		} else {
			fmt.Fprintf(&sb, "%s\t%s\t%s\t%d/%d\t%s\n", s.RoomID, s.State, s.Mode, s.Turns, s.MaxMessages, topic)
		}
	}
	return sb.String()
}

// Topics lists the quick topic suggestions, numbered from 1.
func (r *Renderer) Topics(topics []string) string {
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Quick topics\n"))
	}
	for i, t := range topics {
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s\n", color.HiBlackString("%d.", i+1), t)
		} else {
			fmt.Fprintf(&sb, "%d\t%s\n", i+1, t)
		}
	}
	return sb.String()
}

func speakerString(s models.Speaker) string {
	switch s {
	case models.SpeakerLeft:
		return color.New(color.FgBlue, color.Bold).Sprint(s.Label())
	case models.SpeakerRight:
		return color.New(color.FgMagenta, color.Bold).Sprint(s.Label())
	default:
		return color.New(color.FgYellow, color.Bold).Sprint(s.Label())
	}
}

func statusString(s models.Status) string {
	switch s {
	case models.StatusActive:
		return color.GreenString("%s", string(s))
	case models.StatusFailed:
		return color.RedString("%s", string(s))
	case models.StatusCompleted:
		return color.HiBlackString("%s", string(s))
	default:
		return color.YellowString("%s", string(s))
	}
}

func stateString(s models.RoomState) string {
	switch s {
	case models.StateActive:
		return color.GreenString("%s", string(s))
	case models.StateFailed:
		return color.RedString("%s", string(s))
	case models.StatePaused:
		return color.YellowString("%s", string(s))
	default:
		return color.HiBlackString("%s", string(s))
	}
}
