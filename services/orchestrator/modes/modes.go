// Package modes defines the conversational "feel" bundles a room can run in.
package modes

import (
	"fmt"
	"sort"
	"time"
)

// Mode configures pacing, length and tone of a conversation.
type Mode struct {
	Name         string
	Interval     time.Duration
	MaxMessages  int
	PromptStyle  string
	SystemPrompt string
}

const (
	Conference   = "conference"
	Podcast      = "podcast"
	Focus        = "focus"
	Storytelling = "storytelling"
)

var registry = map[string]Mode{
	Conference: {
		Name:         Conference,
		Interval:     4 * time.Second,
		MaxMessages:  20,
		PromptStyle:  "professional and engaging",
		SystemPrompt: "You are participating in a professional AI conference discussion.",
	},
	Podcast: {
		Name:         Podcast,
		Interval:     8 * time.Second,
		MaxMessages:  15,
		PromptStyle:  "relaxed and conversational",
		SystemPrompt: "You are having a casual, laid-back podcast conversation. Keep responses thoughtful but relaxed.",
	},
	Focus: {
		Name:         Focus,
		Interval:     3 * time.Second,
		MaxMessages:  25,
		PromptStyle:  "focused and concise",
		SystemPrompt: "You are in a focused discussion session. Be direct, concise, and highly analytical.",
	},
	Storytelling: {
		Name:         Storytelling,
		Interval:     5 * time.Second,
		MaxMessages:  18,
		PromptStyle:  "narrative and immersive",
		SystemPrompt: "You are crafting a collaborative story. Be descriptive and narrative in your responses.",
	},
}

// TimesOfDay are the settings storytelling mode can reference.
var TimesOfDay = []string{"dawn", "midday", "sunset", "night"}

const DefaultTimeOfDay = "night"

// Get returns the named mode.
func Get(name string) (Mode, error) {
	m, ok := registry[name]
	if !ok {
		return Mode{}, fmt.Errorf("unknown mode %q", name)
	}
	return m, nil
}

// Names returns all mode names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func ValidTimeOfDay(t string) bool {
	for _, v := range TimesOfDay {
		if v == t {
			return true
		}
	}
	return false
}

// Context returns the scene-setting sentence added to every prompt.
func (m Mode) Context(timeOfDay string) string {
	switch m.Name {
	case Podcast:
		return "This is a relaxed podcast setting. Be conversational and think out loud."
	case Focus:
		return "Focus on clarity and precision. Be analytical and direct."
	case Storytelling:
		return fmt.Sprintf("It's %s time. Use narrative elements and paint vivid pictures with your words.", timeOfDay)
	default:
		return "This is a professional conference discussion."
	}
}
