package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"conference/services/orchestrator/models"
)

const channelPrefix = "room:"

// Channel is the pub/sub channel carrying a room's events.
func Channel(roomID string) string {
	return channelPrefix + roomID
}

// RedisPublisher publishes events as JSON on the room channel.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev models.Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, Channel(ev.RoomID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func Encode(ev models.Event) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	return string(data), nil
}

func Decode(payload string) (models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return models.Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return ev, nil
}

// Follow subscribes to a room channel and decodes its events until ctx is
// done. Undecodable payloads are skipped.
func Follow(ctx context.Context, rdb *redis.Client, roomID string) (<-chan models.Event, error) {
	pubsub := rdb.Subscribe(ctx, Channel(roomID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel(roomID), err)
	}

	out := make(chan models.Event, defaultBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, err := Decode(msg.Payload)
				if err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
