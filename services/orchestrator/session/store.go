// Package session persists conversation records.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"conference/services/orchestrator/models"
)

// Store is the CRUD contract the scheduler persists through. Update is
// last-write-wins on the message list.
type Store interface {
	Create(ctx context.Context, conv *models.Conversation) error
	Update(ctx context.Context, id string, update models.ConversationUpdate) error
	Get(ctx context.Context, id string) (*models.Conversation, error)
	List(ctx context.Context, limit int) ([]*models.Conversation, error)
	Close() error
}

var (
	// ErrNotFound indicates the requested conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrInvalidID indicates an empty or malformed conversation id.
	ErrInvalidID = errors.New("invalid conversation ID")
)

// NotFoundError wraps ErrNotFound with the missing id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("conversation not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// prepare fills the server-assigned fields of a new record.
func prepare(conv *models.Conversation, now time.Time) {
	if conv.ID == "" {
		conv.ID = ulid.Make().String()
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	if conv.Status == "" {
		conv.Status = models.StatusPaused
	}
	if conv.Mode == "" {
		conv.Mode = models.ModeTextChat
	}
	if conv.LeftModel == "" {
		conv.LeftModel = models.DefaultAIModel
	}
	if conv.RightModel == "" {
		conv.RightModel = models.DefaultAIModel
	}
	conv.CreatedAt = now
	conv.UpdatedAt = now
}

func validate(conv *models.Conversation) error {
	if conv.Title == "" {
		return fmt.Errorf("conversation title is required")
	}
	return nil
}
