package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"conference/services/orchestrator/events"
	"conference/services/orchestrator/models"
	"conference/services/orchestrator/modes"
	"conference/services/orchestrator/render"
	"conference/services/orchestrator/router"
	"conference/services/orchestrator/session"
	"conference/services/orchestrator/watch"
)

const apiTimeout = 10 * time.Second

// withStore opens the configured conversation store for a one-shot command.
func withStore(ctx context.Context, fn func(store session.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil && cfg.Store != "sqlite" {
		return err
	}
	if rdb != nil && cfg.Store == "sqlite" {
		defer rdb.Close()
	}
	store, err := openStore(cfg, rdb)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func transcriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <conversation-id>",
		Short: "Print the transcript of a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(store session.Store) error {
				conv, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), render.New(!color.NoColor).Transcript(conv))
				return nil
			})
		},
	}
}

func conversationsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List recent conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}
			return withStore(cmd.Context(), func(store session.Store) error {
				convs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), render.New(!color.NoColor).Conversations(convs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of conversations")
	return cmd
}

func roomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "Show the live rooms of a running orchestrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := fetchRooms(cmd.Context(), flagAPIURL)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), render.New(!color.NoColor).Rooms(snaps))
			return nil
		},
	}
}

func fetchRooms(ctx context.Context, baseURL string) ([]models.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/rooms", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach orchestrator: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("orchestrator returned %s", resp.Status)
	}

	var snaps []models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return snaps, nil
}

func topicsCmd() *cobra.Command {
	var roomID string
	cmd := &cobra.Command{
		Use:   "topics [n]",
		Short: "List quick topics, or switch a room to topic n",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprint(cmd.OutOrStdout(), render.New(!color.NoColor).Topics(modes.Topics()))
				return nil
			}
			c, err := topicCommand(roomID, args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rdb, err := connectRedis(cmd.Context(), cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
			defer cancel()
			if err := router.Send(ctx, rdb, c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Room %s switching to %q\n", c.RoomID, c.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&roomID, "room", "", "room to switch (required with n)")
	return cmd
}

// topicCommand builds the change_topic command for quick topic arg.
func topicCommand(roomID, arg string) (models.Command, error) {
	if roomID == "" {
		return models.Command{}, fmt.Errorf("--room is required to switch topics")
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return models.Command{}, fmt.Errorf("invalid topic number %q", arg)
	}
	topic, err := modes.Topic(n)
	if err != nil {
		return models.Command{}, err
	}
	return models.Command{
		CommandID: uuid.New().String(),
		RoomID:    roomID,
		Type:      models.CommandChangeTopic,
		Text:      topic,
		Timestamp: time.Now().UTC(),
	}, nil
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <room-id>",
		Short: "Follow a room live and send moderator commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rdb, err := connectRedis(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()

			roomID := args[0]
			evs, err := events.Follow(ctx, rdb, roomID)
			if err != nil {
				return err
			}
			send := func(c models.Command) error {
				sctx, cancel := context.WithTimeout(ctx, apiTimeout)
				defer cancel()
				return router.Send(sctx, rdb, c)
			}
			return watch.Run(ctx, roomID, evs, send)
		},
	}
}
