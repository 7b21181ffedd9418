// Package metrics provides Prometheus metrics for the orchestrator
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for conference rooms
type Metrics struct {
	// Turn metrics
	TurnsTotal    *prometheus.CounterVec
	RetriesTotal  prometheus.Counter
	TurnsDropped  *prometheus.CounterVec
	ModeratorMsgs prometheus.Counter

	// LLM metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Emotion analysis
	EmotionAnalysesTotal *prometheus.CounterVec

	// Room metrics
	RoomsActive   prometheus.Gauge
	CommandsTotal *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. A nil reg uses the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		TurnsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conference_turns_total",
				Help: "Total number of produced turns",
			},
			[]string{"speaker", "status"},
		),
		RetriesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "conference_turn_retries_total",
				Help: "Total number of scheduled turn retries",
			},
		),
		TurnsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conference_turns_dropped_total",
				Help: "Timer ticks or results dropped by the one-turn-in-flight guard",
			},
			[]string{"reason"},
		),
		ModeratorMsgs: f.NewCounter(
			prometheus.CounterOpts{
				Name: "conference_moderator_messages_total",
				Help: "Total number of injected moderator messages",
			},
		),
		LLMRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conference_llm_requests_total",
				Help: "Total number of LLM requests",
			},
			[]string{"kind", "status"},
		),
		LLMRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conference_llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"kind"},
		),
		StoreOperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conference_store_operations_total",
				Help: "Total number of conversation store operations",
			},
			[]string{"operation", "status"},
		),
		StoreOperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conference_store_operation_duration_seconds",
				Help:    "Duration of conversation store operations in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		EmotionAnalysesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conference_emotion_analyses_total",
				Help: "Total number of emotion analyses",
			},
			[]string{"status"},
		),
		RoomsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "conference_rooms_active",
				Help: "Number of rooms with a running conversation",
			},
		),
		CommandsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conference_commands_total",
				Help: "Total number of room commands handled",
			},
			[]string{"type", "status"},
		),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordTurn records a turn outcome for a speaker
func (m *Metrics) RecordTurn(speaker string, err error) {
	m.TurnsTotal.WithLabelValues(speaker, statusLabel(err)).Inc()
}

// RecordLLMRequest records an LLM call; kind is "turn" or "emotion"
func (m *Metrics) RecordLLMRequest(kind string, duration time.Duration, err error) {
	m.LLMRequestsTotal.WithLabelValues(kind, statusLabel(err)).Inc()
	m.LLMRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordStoreOperation records a conversation store call
func (m *Metrics) RecordStoreOperation(operation string, duration time.Duration, err error) {
	m.StoreOperationsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEmotion records an emotion analysis outcome
func (m *Metrics) RecordEmotion(err error) {
	m.EmotionAnalysesTotal.WithLabelValues(statusLabel(err)).Inc()
}

// RecordCommand records a handled room command
func (m *Metrics) RecordCommand(commandType string, err error) {
	m.CommandsTotal.WithLabelValues(commandType, statusLabel(err)).Inc()
}
