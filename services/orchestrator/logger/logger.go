// Package logger provides structured logging for the orchestrator
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with conference-specific helpers
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // console output for development
	Output     io.Writer
	WithCaller bool
	Service    string
}

// New creates a structured logger
func New(cfg Config) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	service := cfg.Service
	if service == "" {
		service = "orchestrator"
	}

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying zerolog logger
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zlog
}

func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.zlog.Fatal() }

// Component returns a child logger tagged with a component name
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// Room returns a child logger tagged with a room id
func (l *Logger) Room(roomID string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("room_id", roomID).Logger()}
}

// LogStoreOperation logs a conversation store call
func (l *Logger) LogStoreOperation(operation, conversationID string, duration time.Duration, err error) {
	if err != nil {
		l.zlog.Error().
			Str("component", "store").
			Str("operation", operation).
			Str("conversation_id", conversationID).
			Dur("duration_ms", duration).
			Err(err).
			Msg("Store operation failed")
		return
	}
	l.zlog.Debug().
		Str("component", "store").
		Str("operation", operation).
		Str("conversation_id", conversationID).
		Dur("duration_ms", duration).
		Msg("Store operation completed")
}

// LogServerStart logs service startup
func (l *Logger) LogServerStart(port string, store string) {
	l.zlog.Info().
		Str("event", "server_start").
		Str("port", port).
		Str("store", store).
		Msg("Orchestrator starting")
}

// LogServerShutdown logs service shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("Orchestrator shutting down")
}
