package models

import "time"

type Speaker string

const (
	SpeakerLeft      Speaker = "left_ai"
	SpeakerRight     Speaker = "right_ai"
	SpeakerModerator Speaker = "moderator"
)

// Label is the persona name used in prompts and transcripts.
func (s Speaker) Label() string {
	switch s {
	case SpeakerLeft:
		return "Alice"
	case SpeakerRight:
		return "Bob"
	case SpeakerModerator:
		return "Moderator"
	default:
		return "User"
	}
}

func (s Speaker) IsAI() bool {
	return s == SpeakerLeft || s == SpeakerRight
}

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type ConversationMode string

const (
	ModeTextChat  ConversationMode = "text_chat"
	ModeLiveAudio ConversationMode = "live_audio"
)

const (
	DefaultAIModel = "gpt-4"
	ModeratorModel = "human"
)

// AIModels lists the models a side can be configured with.
var AIModels = []string{"gpt-4", "gpt-3.5", "claude", "palm"}

func ValidAIModel(model string) bool {
	for _, m := range AIModels {
		if m == model {
			return true
		}
	}
	return false
}

type Message struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	ModelUsed string    `json:"model_used"`
}

type Conversation struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	LeftModel  string           `json:"left_ai_model"`
	RightModel string           `json:"right_ai_model"`
	Messages   []Message        `json:"messages"`
	Status     Status           `json:"status"`
	Mode       ConversationMode `json:"mode"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ConversationUpdate carries the fields of a partial update. Nil fields are
// left untouched; a non-nil empty Messages slice clears the transcript.
type ConversationUpdate struct {
	Messages   []Message         `json:"messages,omitempty"`
	Status     *Status           `json:"status,omitempty"`
	Mode       *ConversationMode `json:"mode,omitempty"`
	LeftModel  *string           `json:"left_ai_model,omitempty"`
	RightModel *string           `json:"right_ai_model,omitempty"`
}

func UpdateMessages(msgs []Message) ConversationUpdate {
	cp := make([]Message, len(msgs))
	copy(cp, msgs)
	return ConversationUpdate{Messages: cp}
}

func UpdateStatus(s Status) ConversationUpdate {
	return ConversationUpdate{Status: &s}
}

// Apply merges u into c and bumps UpdatedAt.
func (c *Conversation) Apply(u ConversationUpdate, now time.Time) {
	if u.Messages != nil {
		c.Messages = u.Messages
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.Mode != nil {
		c.Mode = *u.Mode
	}
	if u.LeftModel != nil {
		c.LeftModel = *u.LeftModel
	}
	if u.RightModel != nil {
		c.RightModel = *u.RightModel
	}
	c.UpdatedAt = now
}

type EmotionLabel string

const (
	EmotionPositive EmotionLabel = "positive"
	EmotionNeutral  EmotionLabel = "neutral"
	EmotionNegative EmotionLabel = "negative"
	EmotionCritical EmotionLabel = "critical"
)

func ValidEmotion(l EmotionLabel) bool {
	switch l {
	case EmotionPositive, EmotionNeutral, EmotionNegative, EmotionCritical:
		return true
	}
	return false
}

type Emotion struct {
	Label      EmotionLabel       `json:"label"`
	Confidence float64            `json:"confidence"`
	Stats      map[string]float64 `json:"stats"`
}

func NeutralEmotion() Emotion {
	return Emotion{Label: EmotionNeutral, Stats: map[string]float64{}}
}
