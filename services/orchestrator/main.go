package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"conference/services/orchestrator/config"
	"conference/services/orchestrator/emotion"
	"conference/services/orchestrator/events"
	"conference/services/orchestrator/llm"
	"conference/services/orchestrator/logger"
	"conference/services/orchestrator/metrics"
	"conference/services/orchestrator/router"
	"conference/services/orchestrator/scheduler"
	"conference/services/orchestrator/server"
	"conference/services/orchestrator/session"
)

const shutdownTimeout = 10 * time.Second

var (
	flagPort     string
	flagRedisURL string
	flagLogLevel string
	flagAPIURL   string
)

func main() {
	root := &cobra.Command{
		Use:           "orchestrator",
		Short:         "Runs and inspects AI conference rooms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagRedisURL, "redis-url", "", "Redis URL (overrides REDIS_URL)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	root.PersistentFlags().StringVar(&flagAPIURL, "url", "http://localhost:8082", "orchestrator HTTP address")

	root.AddCommand(
		serveCmd(),
		transcriptCmd(),
		conversationsCmd(),
		roomsCmd(),
		topicsCmd(),
		watchCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
	cmd.Flags().StringVar(&flagPort, "port", "", "HTTP port (overrides PORT)")
	return cmd
}

func loadConfig() (*config.Config, error) {
	loaded, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg := *loaded
	if flagPort != "" {
		cfg.Port = flagPort
	}
	if flagRedisURL != "" {
		cfg.RedisURL = flagRedisURL
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return &cfg, nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "orchestrator",
	})
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// openStore returns the configured conversation store. The Redis store
// owns rdb and closes it; the SQLite archive leaves rdb to the caller.
func openStore(cfg *config.Config, rdb *redis.Client) (session.Store, error) {
	switch cfg.Store {
	case "sqlite":
		return session.OpenArchive(cfg.SQLitePath)
	default:
		return session.NewManager(rdb, cfg.SessionTTL), nil
	}
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	m := metrics.New(prometheus.DefaultRegisterer)

	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	log.Info().Str("redis_url", cfg.RedisURL).Msg("Connected to Redis")

	store, err := openStore(cfg, rdb)
	if err != nil {
		rdb.Close()
		return err
	}
	defer store.Close()
	if cfg.Store == "sqlite" {
		defer rdb.Close()
	}

	client, err := llm.New(llm.Options{
		Provider: cfg.LLMProvider,
		URL:      cfg.LLMURL,
		APIKey:   cfg.OpenAIKey,
		BaseURL:  cfg.OpenAIBaseURL,
		Model:    cfg.LLMModel,
		Timeout:  cfg.LLMTimeout,
	})
	if err != nil {
		return err
	}
	analyzer := emotion.NewAnalyzer(client, 0)
	sink := events.NewRedisPublisher(rdb)

	retry := scheduler.RetryPolicy{
		Delay:       cfg.RetryDelay,
		Multiplier:  cfg.RetryMultiplier,
		MaxDelay:    cfg.RetryMaxDelay,
		MaxAttempts: cfg.RetryMaxAttempts,
	}
	rooms := router.NewRegistry(func(roomID string) (router.Room, error) {
		s, err := scheduler.New(scheduler.Config{
			RoomID:      roomID,
			Mode:        cfg.DefaultMode,
			Retry:       retry,
			TurnTimeout: cfg.LLMTimeout,
		}, scheduler.Deps{
			LLM:      client,
			Store:    store,
			Analyzer: analyzer,
			Sink:     sink,
			Log:      log,
			Metrics:  m,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}, sink, log)

	r := router.New(rdb, rooms, log, m)
	if err := r.EnsureConsumerGroup(ctx); err != nil {
		return err
	}
	consumeCtx, cancelConsume := context.WithCancel(ctx)
	defer cancelConsume()
	go r.ConsumeLoop(consumeCtx)

	srv := server.New(server.Options{
		Port:  cfg.Port,
		Rooms: rooms,
		Store: store,
		Ready: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		Gatherer: prometheus.DefaultGatherer,
		Log:      log,
	})

	go func() {
		<-ctx.Done()
		log.LogServerShutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}()

	log.LogServerStart(cfg.Port, cfg.Store)
	if err := srv.Start(); err != nil {
		return err
	}

	cancelConsume()
	if err := rooms.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close rooms")
	}
	return nil
}
