package models

// Frame types the adapter sends on its own behalf. Room events are
// forwarded to the socket unchanged.
const (
	FrameConnected = "connected"
	FrameError     = "error"
)

// WSResponse is a control frame written by the adapter.
type WSResponse struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	RoomID string `json:"room_id,omitempty"`
}
