package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"conference/services/orchestrator/logger"
	"conference/services/orchestrator/metrics"
	"conference/services/orchestrator/models"
)

const (
	StreamKey      = "conference:commands"
	CommandField   = "command"
	consumerGroup  = "orchestrator-group"
	consumerName   = "orchestrator-1"
	commandTimeout = 30 * time.Second
	readBlock      = 5 * time.Second
	reapInterval   = time.Minute
)

var ErrUnknownCommand = errors.New("unknown command type")

// Router reads room commands from the Redis stream and applies them to the
// room registry.
type Router struct {
	rdb     *redis.Client
	rooms   *Registry
	log     *logger.Logger
	metrics *metrics.Metrics
	block   time.Duration
}

func New(rdb *redis.Client, rooms *Registry, log *logger.Logger, m *metrics.Metrics) *Router {
	return &Router{
		rdb:     rdb,
		rooms:   rooms,
		log:     log.Component("router"),
		metrics: m,
		block:   readBlock,
	}
}

func (r *Router) EnsureConsumerGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, StreamKey, consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// ConsumeLoop reads commands until ctx is done. Idle rooms are reaped from
// the same goroutine so a release never races a dispatch.
func (r *Router) ConsumeLoop(ctx context.Context) {
	r.log.Info().Str("stream", StreamKey).Msg("Starting consumer loop")
	lastReap := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if time.Since(lastReap) >= reapInterval {
			if n := r.rooms.Reap(ctx); n > 0 {
				r.log.Info().Int("rooms", n).Msg("Reaped idle rooms")
			}
			lastReap = time.Now()
		}

		streams, err := r.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: consumerName,
			Streams:  []string{StreamKey, ">"},
			Count:    10,
			Block:    r.block,
		}).Result()

		if err == redis.Nil || err != nil && ctx.Err() != nil {
			continue
		}
		if err != nil {
			r.log.Error().Err(err).Msg("Error reading stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				r.handleMessage(ctx, msg)
			}
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, msg redis.XMessage) {
	defer r.rdb.XAck(ctx, StreamKey, consumerGroup, msg.ID)

	raw, ok := msg.Values[CommandField].(string)
	if !ok {
		r.log.Warn().Str("message_id", msg.ID).Msg("Invalid message format, missing command field")
		return
	}

	var cmd models.Command
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		r.log.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to unmarshal command")
		return
	}

	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := r.Dispatch(cctx, cmd); err != nil {
		r.log.Warn().Err(err).
			Str("room_id", cmd.RoomID).
			Str("type", string(cmd.Type)).
			Str("command_id", cmd.CommandID).
			Msg("Command rejected")
	}
}

// Dispatch applies a single command to its room. Only start and
// change_topic create a room; other commands need one to exist. A room left
// idle by the command is released. Rejections are reported to the room's
// subscribers as error events.
func (r *Router) Dispatch(ctx context.Context, cmd models.Command) error {
	err := r.dispatch(ctx, cmd)
	r.metrics.RecordCommand(string(cmd.Type), err)
	if cmd.RoomID == "" {
		return err
	}
	if err != nil {
		r.rooms.Notify(ctx, models.Event{
			Type:   models.EventError,
			RoomID: cmd.RoomID,
			Error:  err.Error(),
		})
	}
	r.rooms.Release(ctx, cmd.RoomID)
	return err
}

// Creates reports whether t may bring a new room into existence.
func Creates(t models.CommandType) bool {
	return t == models.CommandStart || t == models.CommandChangeTopic
}

func (r *Router) dispatch(ctx context.Context, cmd models.Command) error {
	if cmd.RoomID == "" {
		return errors.New("command has no room_id")
	}
	if !Known(cmd.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}

	var room Room
	if Creates(cmd.Type) {
		var err error
		if room, err = r.rooms.Get(cmd.RoomID); err != nil {
			return err
		}
	} else {
		var ok bool
		if room, ok = r.rooms.Lookup(cmd.RoomID); !ok {
			return fmt.Errorf("%w: %s", ErrRoomNotFound, cmd.RoomID)
		}
	}

	switch cmd.Type {
	case models.CommandStart:
		if err := applySettings(ctx, room, cmd); err != nil {
			return err
		}
		return room.Start(ctx, cmd.Text)
	case models.CommandPause:
		return room.Pause(ctx)
	case models.CommandResume:
		return room.Resume(ctx)
	case models.CommandStop:
		return room.Stop(ctx)
	case models.CommandInject, models.CommandTranscript:
		return room.Inject(ctx, cmd.Text)
	case models.CommandRetry:
		return room.Retry(ctx)
	case models.CommandChangeTopic:
		if err := applySettings(ctx, room, cmd); err != nil {
			return err
		}
		return room.ChangeTopic(ctx, cmd.Text)
	case models.CommandSetMode:
		return room.SetMode(ctx, cmd.Mode)
	case models.CommandSetTimeOfDay:
		return room.SetTimeOfDay(ctx, cmd.TimeOfDay)
	case models.CommandSetAudio:
		if cmd.Audio == nil {
			return errors.New("set_audio requires audio")
		}
		return room.SetAudio(ctx, *cmd.Audio)
	case models.CommandSetModels:
		return room.SetModels(ctx, cmd.LeftModel, cmd.RightModel)
	case models.CommandSetSpeech:
		return room.SetSpeech(ctx, cmd.Rate, cmd.Pitch)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
}

// applySettings applies the optional room settings carried by a start or
// change_topic command, so a new room can be configured in one command.
func applySettings(ctx context.Context, room Room, cmd models.Command) error {
	if cmd.Mode != "" {
		if err := room.SetMode(ctx, cmd.Mode); err != nil {
			return err
		}
	}
	if cmd.TimeOfDay != "" {
		if err := room.SetTimeOfDay(ctx, cmd.TimeOfDay); err != nil {
			return err
		}
	}
	if cmd.LeftModel != "" || cmd.RightModel != "" {
		if err := room.SetModels(ctx, cmd.LeftModel, cmd.RightModel); err != nil {
			return err
		}
	}
	if cmd.Audio != nil {
		if err := room.SetAudio(ctx, *cmd.Audio); err != nil {
			return err
		}
	}
	if cmd.Rate != 0 || cmd.Pitch != 0 {
		if err := room.SetSpeech(ctx, cmd.Rate, cmd.Pitch); err != nil {
			return err
		}
	}
	return nil
}

// Send appends cmd to the command stream.
func Send(ctx context.Context, rdb *redis.Client, cmd models.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	return rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]interface{}{CommandField: string(data)},
	}).Err()
}

// Known reports whether t is a command the router handles.
func Known(t models.CommandType) bool {
	switch t {
	case models.CommandStart, models.CommandPause, models.CommandResume, models.CommandStop,
		models.CommandInject, models.CommandTranscript, models.CommandRetry, models.CommandChangeTopic,
		models.CommandSetMode, models.CommandSetTimeOfDay, models.CommandSetAudio,
		models.CommandSetModels, models.CommandSetSpeech:
		return true
	}
	return false
}
