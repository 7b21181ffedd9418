// Package config collects the orchestrator's environment settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all orchestrator settings.
type Config struct {
	// RedisURL is the Redis connection URL (REDIS_URL)
	RedisURL string

	// Port is the HTTP listen port (PORT)
	Port string

	// LLMProvider selects the LLM backend: "endpoint" or "openai" (LLM_PROVIDER)
	LLMProvider string

	// LLMURL is the prompt endpoint for the "endpoint" provider (LLM_URL)
	LLMURL string

	// LLMModel is the model sent to OpenAI-compatible backends (LLM_MODEL)
	LLMModel string

	// LLMTimeout bounds a single completion call (LLM_TIMEOUT)
	LLMTimeout time.Duration

	// OpenAIKey is the OpenAI API key (OPENAI_API_KEY)
	OpenAIKey string

	// OpenAIBaseURL overrides the OpenAI API base URL (OPENAI_BASE_URL)
	OpenAIBaseURL string

	// Store selects the conversation store: "redis" or "sqlite" (STORE)
	Store string

	// SQLitePath is the archive database file (SQLITE_PATH)
	SQLitePath string

	// SessionTTL is how long conversations live in Redis (SESSION_TTL)
	SessionTTL time.Duration

	// LogLevel is one of debug, info, warn, error (LOG_LEVEL)
	LogLevel string

	// LogPretty enables console output instead of JSON (LOG_PRETTY)
	LogPretty bool

	// DefaultMode is the mode new rooms start in (DEFAULT_MODE)
	DefaultMode string

	// Retry policy for failed turns (RETRY_DELAY, RETRY_MULTIPLIER,
	// RETRY_MAX_DELAY, RETRY_MAX_ATTEMPTS). Zero attempts means unbounded.
	RetryDelay       time.Duration
	RetryMultiplier  float64
	RetryMaxDelay    time.Duration
	RetryMaxAttempts int
}

var (
	cfg     *Config
	cfgErr  error
	cfgOnce sync.Once
)

// Load returns the process configuration, reading the environment once.
func Load() (*Config, error) {
	cfgOnce.Do(func() {
		cfg, cfgErr = FromEnv(os.LookupEnv)
	})
	return cfg, cfgErr
}

// Reset clears the cached configuration (for testing).
func Reset() {
	cfgOnce = sync.Once{}
	cfg = nil
	cfgErr = nil
}

// FromEnv builds a Config from lookup, applying defaults.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	e := envReader{lookup: lookup}
	c := &Config{
		RedisURL:         e.str("REDIS_URL", "redis://localhost:6379"),
		Port:             e.str("PORT", "8082"),
		LLMProvider:      e.str("LLM_PROVIDER", "endpoint"),
		LLMURL:           e.str("LLM_URL", "http://localhost:8083/api/llm"),
		LLMModel:         e.str("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:       e.duration("LLM_TIMEOUT", 60*time.Second),
		OpenAIKey:        e.str("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    e.str("OPENAI_BASE_URL", ""),
		Store:            e.str("STORE", "redis"),
		SQLitePath:       e.str("SQLITE_PATH", "conference.db"),
		SessionTTL:       e.duration("SESSION_TTL", 24*time.Hour),
		LogLevel:         e.str("LOG_LEVEL", "info"),
		LogPretty:        e.boolean("LOG_PRETTY", false),
		DefaultMode:      e.str("DEFAULT_MODE", "conference"),
		RetryDelay:       e.duration("RETRY_DELAY", 2*time.Second),
		RetryMultiplier:  e.float("RETRY_MULTIPLIER", 1),
		RetryMaxDelay:    e.duration("RETRY_MAX_DELAY", time.Minute),
		RetryMaxAttempts: e.integer("RETRY_MAX_ATTEMPTS", 0),
	}
	if e.err != nil {
		return nil, e.err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks enumerated settings and retry bounds.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "endpoint", "openai":
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q: want endpoint or openai", c.LLMProvider)
	}
	switch c.Store {
	case "redis", "sqlite":
	default:
		return fmt.Errorf("invalid STORE %q: want redis or sqlite", c.Store)
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("RETRY_DELAY must be positive, got %s", c.RetryDelay)
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be >= 1, got %v", c.RetryMultiplier)
	}
	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 0, got %d", c.RetryMaxAttempts)
	}
	return nil
}

type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(key, fallback string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return fallback
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return b
}

func (e *envReader) integer(key string, fallback int) int {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return n
}

func (e *envReader) float(key string, fallback float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return f
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return fallback
	}
	return d
}

func (e *envReader) fail(key, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}
