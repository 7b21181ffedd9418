package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference/services/orchestrator/events"
	"conference/services/orchestrator/logger"
	"conference/services/orchestrator/metrics"
	"conference/services/orchestrator/models"
)

// fakeRoom records the calls it receives and tracks whether it holds a
// conversation.
type fakeRoom struct {
	mu      sync.Mutex
	id      string
	calls   []string
	err     error
	closed  bool
	state   models.RoomState
	pending string
}

func (f *fakeRoom) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeRoom) set(state models.RoomState, pending string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state, f.pending = state, pending
}

func (f *fakeRoom) Start(_ context.Context, topic string) error {
	if err := f.record("start:" + topic); err != nil {
		return err
	}
	if topic == "" {
		return errors.New("topic is required")
	}
	f.set(models.StateActive, "")
	return nil
}
func (f *fakeRoom) Pause(context.Context) error                 { return f.record("pause") }
func (f *fakeRoom) Resume(context.Context) error                { return f.record("resume") }
func (f *fakeRoom) Inject(_ context.Context, text string) error { return f.record("inject:" + text) }
func (f *fakeRoom) Retry(context.Context) error                 { return f.record("retry") }
func (f *fakeRoom) SetMode(_ context.Context, m string) error   { return f.record("mode:" + m) }
func (f *fakeRoom) Stop(context.Context) error {
	if err := f.record("stop"); err != nil {
		return err
	}
	f.set(models.StateIdle, "")
	return nil
}
func (f *fakeRoom) ChangeTopic(_ context.Context, t string) error {
	if err := f.record("topic:" + t); err != nil {
		return err
	}
	f.set(models.StateIdle, t)
	return nil
}
func (f *fakeRoom) SetTimeOfDay(_ context.Context, t string) error {
	return f.record("time:" + t)
}
func (f *fakeRoom) SetAudio(_ context.Context, on bool) error {
	if on {
		return f.record("audio:on")
	}
	return f.record("audio:off")
}
func (f *fakeRoom) SetModels(_ context.Context, l, r string) error {
	return f.record("models:" + l + "/" + r)
}
func (f *fakeRoom) SetSpeech(context.Context, float64, float64) error { return f.record("speech") }
func (f *fakeRoom) Snapshot(context.Context) (models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.state
	if state == "" {
		state = models.StateIdle
	}
	return models.Snapshot{RoomID: f.id, State: state, PendingTopic: f.pending}, nil
}
func (f *fakeRoom) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRoom) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRoom) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fixture struct {
	mu       sync.Mutex
	router   *Router
	registry *Registry
	rooms    map[string]*fakeRoom
	created  int
	notified []models.Event
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{rooms: map[string]*fakeRoom{}, metrics: metrics.New(prometheus.NewRegistry())}
	sink := events.PublisherFunc(func(_ context.Context, ev models.Event) error {
		f.mu.Lock()
		f.notified = append(f.notified, ev)
		f.mu.Unlock()
		return nil
	})
	f.registry = NewRegistry(func(id string) (Room, error) {
		if id == "broken" {
			return nil, errors.New("no llm")
		}
		r := &fakeRoom{id: id}
		f.mu.Lock()
		f.rooms[id] = r
		f.created++
		f.mu.Unlock()
		return r, nil
	}, sink, logger.Nop())
	f.router = New(nil, f.registry, logger.Nop(), f.metrics)
	return f
}

func TestDispatchRoutesEveryCommand(t *testing.T) {
	f := newFixture(t)
	on := true
	cmds := []models.Command{
		{Type: models.CommandStart, Text: "Mars"},
		{Type: models.CommandPause},
		{Type: models.CommandResume},
		{Type: models.CommandInject, Text: "hi"},
		{Type: models.CommandTranscript, Text: "spoken"},
		{Type: models.CommandRetry},
		{Type: models.CommandChangeTopic, Text: "Venus"},
		{Type: models.CommandSetMode, Mode: "focus"},
		{Type: models.CommandSetTimeOfDay, TimeOfDay: "dawn"},
		{Type: models.CommandSetAudio, Audio: &on},
		{Type: models.CommandSetModels, LeftModel: "claude", RightModel: "palm"},
		{Type: models.CommandSetSpeech, Rate: 1.2},
		{Type: models.CommandStop},
	}
	for _, c := range cmds {
		c.RoomID = "r1"
		require.NoError(t, f.router.Dispatch(context.Background(), c), c.Type)
	}

	assert.Equal(t, []string{
		"start:Mars", "pause", "resume", "inject:hi", "inject:spoken", "retry",
		"topic:Venus", "mode:focus", "time:dawn", "audio:on", "models:claude/palm",
		"speech", "stop",
	}, f.rooms["r1"].calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CommandsTotal.WithLabelValues("start", "success")))
	assert.Empty(t, f.notified)

	assert.Equal(t, 1, f.created, "the room survives the pending topic change")
	assert.True(t, f.rooms["r1"].isClosed(), "stop leaves the room idle, so it is released")
	assert.Zero(t, f.registry.Len())
}

func TestDispatchRejections(t *testing.T) {
	f := newFixture(t)

	err := f.router.Dispatch(context.Background(), models.Command{RoomID: "r1", Type: "dance"})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	err = f.router.Dispatch(context.Background(), models.Command{Type: models.CommandPause})
	assert.Error(t, err)

	err = f.router.Dispatch(context.Background(), models.Command{RoomID: "r1", Type: models.CommandSetAudio})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	err = f.router.Dispatch(context.Background(), models.Command{RoomID: "broken", Type: models.CommandStart})
	assert.ErrorContains(t, err, "no llm")

	assert.Empty(t, f.rooms, "rejected commands must not create rooms")
	require.Len(t, f.notified, 3)
	assert.Equal(t, models.EventError, f.notified[0].Type)
	assert.Equal(t, "r1", f.notified[0].RoomID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CommandsTotal.WithLabelValues("dance", "error")))
}

func TestSetAudioRequiresValue(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.router.Dispatch(context.Background(), models.Command{RoomID: "r1", Type: models.CommandStart, Text: "Mars"}))

	err := f.router.Dispatch(context.Background(), models.Command{RoomID: "r1", Type: models.CommandSetAudio})
	assert.ErrorContains(t, err, "requires audio")
}

func TestCommandsToUnknownRoomsCreateNothing(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("room-%d", i)
		err := f.router.Dispatch(context.Background(), models.Command{RoomID: id, Type: models.CommandPause})
		require.ErrorIs(t, err, ErrRoomNotFound)
	}
	assert.Zero(t, f.created)
	assert.Zero(t, f.registry.Len())
}

func TestFailedStartReleasesNewRoom(t *testing.T) {
	f := newFixture(t)

	err := f.router.Dispatch(context.Background(), models.Command{RoomID: "r1", Type: models.CommandStart})
	assert.ErrorContains(t, err, "topic is required")
	assert.True(t, f.rooms["r1"].isClosed())
	assert.Zero(t, f.registry.Len())
}

func TestStartAppliesSettings(t *testing.T) {
	f := newFixture(t)
	off := false

	err := f.router.Dispatch(context.Background(), models.Command{
		RoomID:    "r1",
		Type:      models.CommandStart,
		Text:      "Mars",
		Mode:      "podcast",
		TimeOfDay: "dusk",
		LeftModel: "claude",
		Audio:     &off,
		Rate:      1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mode:podcast", "time:dusk", "models:claude/", "audio:off", "speech", "start:Mars"}, f.rooms["r1"].calls)
}

func TestDispatchReportsRoomErrors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.router.Dispatch(context.Background(), models.Command{RoomID: "r1", Type: models.CommandStart, Text: "Mars"}))
	f.rooms["r1"].err = errors.New("conversation already in progress")

	err := f.router.Dispatch(context.Background(), models.Command{RoomID: "r1", Type: models.CommandStart, Text: "Venus"})
	assert.Error(t, err)
	require.Len(t, f.notified, 1)
	assert.Equal(t, "conversation already in progress", f.notified[0].Error)
	assert.Equal(t, 1, f.registry.Len(), "an active room is kept")
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)

	a, err := f.registry.Get("b")
	require.NoError(t, err)
	again, err := f.registry.Get("b")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = f.registry.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, f.registry.IDs())

	_, ok := f.registry.Lookup("zzz")
	assert.False(t, ok)
	_, err = f.registry.Snapshot(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	snaps, err := f.registry.Snapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "a", snaps[0].RoomID)

	require.NoError(t, f.registry.Close())
	assert.True(t, f.rooms["a"].closed)
	assert.True(t, f.rooms["b"].closed)

	_, err = f.registry.Get("c")
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestRegistryReap(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"active", "idle", "pending"} {
		_, err := f.registry.Get(id)
		require.NoError(t, err)
	}
	f.rooms["active"].set(models.StateActive, "")
	f.rooms["pending"].set(models.StateIdle, "Next topic")

	assert.Equal(t, 1, f.registry.Reap(context.Background()))
	assert.Equal(t, []string{"active", "pending"}, f.registry.IDs())
	assert.True(t, f.rooms["idle"].isClosed())
	assert.False(t, f.registry.Release(context.Background(), "active"))
	assert.False(t, f.registry.Release(context.Background(), "missing"))
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(models.CommandSetSpeech))
	assert.False(t, Known("snapshot"))
	assert.False(t, Known(""))
}
