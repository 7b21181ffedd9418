// Package events fans room events out to in-process subscribers and to
// Redis pub/sub.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"conference/services/orchestrator/logger"
	"conference/services/orchestrator/models"
)

// Publisher delivers an event somewhere outside the room.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev models.Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev models.Event) error {
	return f(ctx, ev)
}

const (
	defaultBuffer = 64
	sinkBuffer    = 256
	sinkTimeout   = 5 * time.Second
)

// ErrSinkFull is returned by Publish when a sink's queue had no room for the
// event.
var ErrSinkFull = errors.New("event sink queue full")

// Broker notifies local subscribers and forwards every event to its sinks.
// Slow subscribers lose events rather than block the room. Each sink is fed
// by its own goroutine so a slow sink never delays the publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan models.Event
	nextID int
	closed bool

	sinks []*sinkQueue
	wg    sync.WaitGroup
	log   *logger.Logger
}

type sinkQueue struct {
	pub   Publisher
	queue chan queued
}

type queued struct {
	ctx context.Context
	ev  models.Event
}

func NewBroker(log *logger.Logger, sinks ...Publisher) *Broker {
	if log == nil {
		log = logger.Nop()
	}
	b := &Broker{
		subs: make(map[int]chan models.Event),
		log:  log.Component("events"),
	}
	for _, pub := range sinks {
		q := &sinkQueue{pub: pub, queue: make(chan queued, sinkBuffer)}
		b.sinks = append(b.sinks, q)
		b.wg.Add(1)
		go b.forward(q)
	}
	return b
}

// forward delivers queued events to one sink in order.
func (b *Broker) forward(q *sinkQueue) {
	defer b.wg.Done()
	for item := range q.queue {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(item.ctx), sinkTimeout)
		err := q.pub.Publish(ctx, item.ev)
		cancel()
		if err != nil {
			b.log.Error().Err(err).Str("room_id", item.ev.RoomID).Str("type", string(item.ev.Type)).Msg("Failed to publish event")
		}
	}
}

// Subscribe registers a listener. The returned cancel func is idempotent.
func (b *Broker) Subscribe(buffer int) (<-chan models.Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan models.Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish never blocks. Sink delivery happens in the background; when a
// sink's queue is full the event is dropped for it and ErrSinkFull returned.
func (b *Broker) Publish(ctx context.Context, ev models.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Warn().Str("room_id", ev.RoomID).Str("type", string(ev.Type)).Msg("Subscriber full, event dropped")
		}
	}

	var err error
	for _, q := range b.sinks {
		select {
		case q.queue <- queued{ctx: ctx, ev: ev}:
		default:
			b.log.Warn().Str("room_id", ev.RoomID).Str("type", string(ev.Type)).Msg("Sink queue full, event dropped")
			err = ErrSinkFull
		}
	}
	return err
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription and waits for queued sink events to be
// delivered.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	for _, q := range b.sinks {
		close(q.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
