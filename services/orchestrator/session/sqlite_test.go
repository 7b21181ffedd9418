package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference/services/orchestrator/models"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(filepath.Join(t.TempDir(), "data", "conference.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchiveCreateAssignsFields(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	conv := &models.Conversation{Title: "Mars Settlement Ethics", Status: models.StatusActive}
	require.NoError(t, a.Create(ctx, conv))

	assert.Len(t, conv.ID, 26) // ULID
	assert.Equal(t, models.DefaultAIModel, conv.LeftModel)
	assert.Equal(t, models.ModeTextChat, conv.Mode)
	assert.NotNil(t, conv.Messages)
	assert.False(t, conv.CreatedAt.IsZero())

	got, err := a.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mars Settlement Ethics", got.Title)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Empty(t, got.Messages)
}

func TestArchiveCreateRequiresTitle(t *testing.T) {
	a := openTestArchive(t)
	assert.Error(t, a.Create(context.Background(), &models.Conversation{}))
}

func TestArchivePartialUpdate(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	conv := &models.Conversation{Title: "Quantum Internet Future", Status: models.StatusActive, Mode: models.ModeLiveAudio}
	require.NoError(t, a.Create(ctx, conv))

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	msgs := []models.Message{
		{Speaker: models.SpeakerLeft, Text: "Opening.", Timestamp: ts, ModelUsed: "gpt-4"},
		{Speaker: models.SpeakerModerator, Text: "Please stay on topic", Timestamp: ts, ModelUsed: models.ModeratorModel},
	}
	require.NoError(t, a.Update(ctx, conv.ID, models.UpdateMessages(msgs)))
	require.NoError(t, a.Update(ctx, conv.ID, models.UpdateStatus(models.StatusCompleted)))

	got, err := a.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, models.ModeLiveAudio, got.Mode)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, models.SpeakerModerator, got.Messages[1].Speaker)
	assert.True(t, ts.Equal(got.Messages[0].Timestamp))
}

func TestArchiveNotFound(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	_, err := a.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))

	err = a.Update(ctx, "missing", models.UpdateStatus(models.StatusPaused))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = a.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestArchiveListNewestFirst(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Minute)
		a.now = func() time.Time { return at }
		require.NoError(t, a.Create(ctx, &models.Conversation{Title: title}))
	}

	list, err := a.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := &NotFoundError{ID: "abc"}
	assert.Equal(t, "conversation not found: abc", err.Error())
	assert.True(t, IsNotFound(err))
}
