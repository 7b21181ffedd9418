// HTTP endpoints for health, metrics and read-only room state
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"conference/services/orchestrator/logger"
	"conference/services/orchestrator/models"
	"conference/services/orchestrator/router"
	"conference/services/orchestrator/session"
)

const defaultListLimit = 20

// Rooms exposes the live room state.
type Rooms interface {
	Snapshots(ctx context.Context) ([]models.Snapshot, error)
	Snapshot(ctx context.Context, id string) (models.Snapshot, error)
}

// Options wires the server's collaborators. Ready may be nil.
type Options struct {
	Port     string
	Rooms    Rooms
	Store    session.Store
	Ready    func(ctx context.Context) error
	Gatherer prometheus.Gatherer
	Log      *logger.Logger
}

type Server struct {
	server *http.Server
	log    *logger.Logger
}

func New(opts Options) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%s", opts.Port),
			Handler:      Handler(opts),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: opts.Log,
	}
}

// Handler builds the route table.
func Handler(opts Options) http.Handler {
	h := &handlers{rooms: opts.Rooms, store: opts.Store, ready: opts.Ready, log: opts.Log.Component("http")}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", h.health)
	mux.HandleFunc("/ready", h.readiness)

	mux.HandleFunc("GET /rooms", h.listRooms)
	mux.HandleFunc("GET /rooms/{id}", h.getRoom)
	mux.HandleFunc("GET /conversations", h.listConversations)
	mux.HandleFunc("GET /conversations/{id}", h.getConversation)

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))

	return mux
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type handlers struct {
	rooms Rooms
	store session.Store
	ready func(ctx context.Context) error
	log   *logger.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "orchestrator"})
}

func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.rooms.Snapshots(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if snaps == nil {
		snaps = []models.Snapshot{}
	}
	h.writeJSON(w, http.StatusOK, snaps)
}

func (h *handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	snap, err := h.rooms.Snapshot(r.Context(), r.PathValue("id"))
	if errors.Is(err, router.ErrRoomNotFound) {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) listConversations(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	convs, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	if convs == nil {
		convs = []*models.Conversation{}
	}
	h.writeJSON(w, http.StatusOK, convs)
}

func (h *handlers) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Get(r.Context(), r.PathValue("id"))
	if session.IsNotFound(err) {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, conv)
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("Request failed")
	h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug().Err(err).Int("status", status).Msg("Failed to write response")
	}
}
