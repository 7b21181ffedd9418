package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference/services/orchestrator/logger"
	"conference/services/orchestrator/models"
)

func newStreamFixture(t *testing.T) (*fixture, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := newFixture(t)
	f.router = New(rdb, f.registry, logger.Nop(), f.metrics)
	f.router.block = 50 * time.Millisecond
	return f, rdb
}

func (f *fixture) calls(id string) []string {
	f.mu.Lock()
	room, ok := f.rooms[id]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	return room.recorded()
}

func TestEnsureConsumerGroupIsIdempotent(t *testing.T) {
	f, _ := newStreamFixture(t)
	require.NoError(t, f.router.EnsureConsumerGroup(context.Background()))
	require.NoError(t, f.router.EnsureConsumerGroup(context.Background()))
}

func TestSendWritesCommandField(t *testing.T) {
	_, rdb := newStreamFixture(t)
	ctx := context.Background()

	cmd := models.Command{CommandID: "c1", RoomID: "r1", Type: models.CommandInject, Text: "hello"}
	require.NoError(t, Send(ctx, rdb, cmd))

	entries, err := rdb.XRange(ctx, StreamKey, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var got models.Command
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values[CommandField].(string)), &got))
	assert.Equal(t, cmd, got)
}

func TestConsumeLoopDispatchesAndAcks(t *testing.T) {
	f, rdb := newStreamFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.router.EnsureConsumerGroup(ctx))

	require.NoError(t, rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]interface{}{"unexpected": "field"},
	}).Err())
	require.NoError(t, Send(ctx, rdb, models.Command{RoomID: "r1", Type: models.CommandStart, Text: "Mars"}))
	require.NoError(t, Send(ctx, rdb, models.Command{RoomID: "r1", Type: models.CommandInject, Text: "Stay on topic"}))

	done := make(chan struct{})
	go func() {
		f.router.ConsumeLoop(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(f.calls("r1")) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"start:Mars", "inject:Stay on topic"}, f.calls("r1"))

	require.Eventually(t, func() bool {
		pending, err := rdb.XPending(ctx, StreamKey, consumerGroup).Result()
		return err == nil && pending.Count == 0
	}, 2*time.Second, 10*time.Millisecond, "every entry, including the malformed one, is acked")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume loop did not stop")
	}
}
