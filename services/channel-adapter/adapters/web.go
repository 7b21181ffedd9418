package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"conference/services/orchestrator/models"
	"conference/services/orchestrator/router"
)

var ErrEmptyFrame = errors.New("empty command frame")

// NormalizeCommand converts a browser frame into a room command. The room
// is fixed by the connection, so any room_id in the frame is replaced. A
// frame carrying only text is treated as a moderator message.
func NormalizeCommand(roomID string, raw []byte) (models.Command, error) {
	var cmd models.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return models.Command{}, fmt.Errorf("invalid command frame: %w", err)
	}
	if cmd.Type == "" {
		if cmd.Text == "" {
			return models.Command{}, ErrEmptyFrame
		}
		cmd.Type = models.CommandInject
	}
	if !router.Known(cmd.Type) {
		return models.Command{}, fmt.Errorf("%w: %q", router.ErrUnknownCommand, cmd.Type)
	}

	cmd.RoomID = roomID
	cmd.CommandID = uuid.New().String()
	cmd.Timestamp = time.Now().UTC()
	return cmd, nil
}
