package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"conference/services/orchestrator/events"
	"conference/services/orchestrator/logger"
	"conference/services/orchestrator/models"
)

// Room is the command surface of a conversation room.
type Room interface {
	Start(ctx context.Context, topic string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Inject(ctx context.Context, text string) error
	Retry(ctx context.Context) error
	ChangeTopic(ctx context.Context, topic string) error
	SetMode(ctx context.Context, mode string) error
	SetTimeOfDay(ctx context.Context, t string) error
	SetAudio(ctx context.Context, on bool) error
	SetModels(ctx context.Context, left, right string) error
	SetSpeech(ctx context.Context, rate, pitch float64) error
	Snapshot(ctx context.Context) (models.Snapshot, error)
	Close() error
}

// Factory builds the room for an id.
type Factory func(roomID string) (Room, error)

var (
	ErrRegistryClosed = errors.New("room registry is closed")
	ErrRoomNotFound   = errors.New("room not found")
)

// Registry owns the rooms of this process. Rooms are created by the commands
// that begin a conversation and released once they fall idle.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]Room
	closed bool

	factory Factory
	sink    events.Publisher
	log     *logger.Logger
}

func NewRegistry(factory Factory, sink events.Publisher, log *logger.Logger) *Registry {
	return &Registry{
		rooms:   make(map[string]Room),
		factory: factory,
		sink:    sink,
		log:     log.Component("registry"),
	}
}

// Get returns the room for id, creating it when needed.
func (r *Registry) Get(id string) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if room, ok := r.rooms[id]; ok {
		return room, nil
	}
	room, err := r.factory(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create room %s: %w", id, err)
	}
	r.rooms[id] = room
	r.log.Info().Str("room_id", id).Msg("Room created")
	return room, nil
}

// Lookup returns an existing room without creating one.
func (r *Registry) Lookup(id string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Snapshots returns the state of every room, ordered by room id.
func (r *Registry) Snapshots(ctx context.Context) ([]models.Snapshot, error) {
	var out []models.Snapshot
	for _, id := range r.IDs() {
		room, ok := r.Lookup(id)
		if !ok {
			continue
		}
		snap, err := room.Snapshot(ctx)
		if err != nil {
			if _, still := r.Lookup(id); !still {
				continue
			}
			return nil, fmt.Errorf("failed to snapshot room %s: %w", id, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// Snapshot returns the state of an existing room.
func (r *Registry) Snapshot(ctx context.Context, id string) (models.Snapshot, error) {
	room, ok := r.Lookup(id)
	if !ok {
		return models.Snapshot{}, ErrRoomNotFound
	}
	snap, err := room.Snapshot(ctx)
	if err != nil {
		if _, still := r.Lookup(id); !still {
			return models.Snapshot{}, ErrRoomNotFound
		}
	}
	return snap, err
}

func idle(snap models.Snapshot) bool {
	return snap.State == models.StateIdle && snap.PendingTopic == ""
}

// Release closes and forgets the room when it holds no conversation and
// no pending start.
func (r *Registry) Release(ctx context.Context, id string) bool {
	r.mu.Lock()
	room, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	snap, err := room.Snapshot(ctx)
	if err != nil || !idle(snap) {
		r.mu.Unlock()
		return false
	}
	delete(r.rooms, id)
	r.mu.Unlock()

	if err := room.Close(); err != nil {
		r.log.Error().Err(err).Str("room_id", id).Msg("Failed to close room")
	}
	r.log.Info().Str("room_id", id).Msg("Room released")
	return true
}

// Reap releases every idle room and returns how many were removed.
func (r *Registry) Reap(ctx context.Context) int {
	n := 0
	for _, id := range r.IDs() {
		if r.Release(ctx, id) {
			n++
		}
	}
	return n
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Notify sends an event to a room's external subscribers.
func (r *Registry) Notify(ctx context.Context, ev models.Event) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Publish(ctx, ev); err != nil {
		r.log.Error().Err(err).Str("room_id", ev.RoomID).Msg("Failed to notify room")
	}
}

// Close shuts every room down.
func (r *Registry) Close() error {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = map[string]Room{}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for id, room := range rooms {
		if err := room.Close(); err != nil {
			errs = append(errs, fmt.Errorf("room %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
