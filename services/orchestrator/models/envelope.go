package models

import "time"

// RoomState is the scheduler state of a room.
type RoomState string

const (
	StateIdle   RoomState = "idle"
	StateActive RoomState = "active"
	StatePaused RoomState = "paused"
	StateFailed RoomState = "failed"
)

type CommandType string

const (
	CommandStart        CommandType = "start"
	CommandPause        CommandType = "pause"
	CommandResume       CommandType = "resume"
	CommandStop         CommandType = "stop"
	CommandInject       CommandType = "inject"
	CommandTranscript   CommandType = "transcript"
	CommandRetry        CommandType = "retry"
	CommandChangeTopic  CommandType = "change_topic"
	CommandSetMode      CommandType = "set_mode"
	CommandSetTimeOfDay CommandType = "set_time_of_day"
	CommandSetAudio     CommandType = "set_audio"
	CommandSetModels    CommandType = "set_models"
	CommandSetSpeech    CommandType = "set_speech"
)

// Command is the envelope read from the command stream.
type Command struct {
	CommandID  string      `json:"command_id"`
	RoomID     string      `json:"room_id"`
	Type       CommandType `json:"type"`
	Text       string      `json:"text,omitempty"`
	Mode       string      `json:"mode,omitempty"`
	TimeOfDay  string      `json:"time_of_day,omitempty"`
	Audio      *bool       `json:"audio,omitempty"`
	LeftModel  string      `json:"left_model,omitempty"`
	RightModel string      `json:"right_model,omitempty"`
	Rate       float64     `json:"rate,omitempty"`
	Pitch      float64     `json:"pitch,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

type EventType string

const (
	EventState    EventType = "state"
	EventMessage  EventType = "message"
	EventEmotion  EventType = "emotion"
	EventError    EventType = "error"
	EventSpeak    EventType = "speak"
	EventCleared  EventType = "cleared"
	EventSnapshot EventType = "snapshot"
)

// Event is published to room subscribers.
type Event struct {
	Type      EventType `json:"type"`
	RoomID    string    `json:"room_id"`
	State     RoomState `json:"state,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Speaker   Speaker   `json:"speaker,omitempty"`
	Text      string    `json:"text,omitempty"`
	Emotion   *Emotion  `json:"emotion,omitempty"`
	Error     string    `json:"error,omitempty"`
	Speech    *Speech   `json:"speech,omitempty"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Speech holds playback settings sent with speak events.
type Speech struct {
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

// Snapshot is a point-in-time copy of a room for late joiners.
type Snapshot struct {
	RoomID         string              `json:"room_id"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Topic          string              `json:"topic,omitempty"`
	PendingTopic   string              `json:"pending_topic,omitempty"`
	State          RoomState           `json:"state"`
	Mode           string              `json:"mode"`
	TimeOfDay      string              `json:"time_of_day"`
	Audio          bool                `json:"audio"`
	LeftModel      string              `json:"left_model"`
	RightModel     string              `json:"right_model"`
	Messages       []Message           `json:"messages"`
	Turns          int                 `json:"turns"`
	MaxMessages    int                 `json:"max_messages"`
	Emotions       map[Speaker]Emotion `json:"emotions"`
	Error          string              `json:"error,omitempty"`
	Speech         Speech              `json:"speech"`
}
