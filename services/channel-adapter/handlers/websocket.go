package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"conference/services/channel-adapter/adapters"
	"conference/services/channel-adapter/models"
	"conference/services/orchestrator/events"
	"conference/services/orchestrator/logger"
	"conference/services/orchestrator/router"
)

const sendTimeout = 5 * time.Second

// WSHandler bridges one browser socket to a room: room events flow out,
// commands flow into the orchestrator's command stream.
type WSHandler struct {
	rdb            *redis.Client
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
	log            *logger.Logger
}

func NewWSHandler(rdb *redis.Client, allowedOrigins []string, log *logger.Logger) *WSHandler {
	origins := make(map[string]bool)
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	if log == nil {
		log = logger.Nop()
	}
	h := &WSHandler{rdb: rdb, allowedOrigins: origins, log: log.Component("websocket")}
	h.upgrader.CheckOrigin = h.checkOrigin
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	return h.allowedOrigins[origin]
}

// socket serializes writes from the event forwarder and the read loop.
type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *logger.Logger
}

func (s *socket) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// reply sends a control frame. The client may already be gone, so a failure
// is only logged.
func (s *socket) reply(resp models.WSResponse) {
	if err := s.write(resp); err != nil {
		s.log.Debug().Err(err).Str("type", resp.Type).Msg("Failed to write frame")
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		roomID = uuid.New().String()
	}
	log := h.log.Room(roomID)
	sock := &socket{conn: conn, log: log}

	if err := sock.write(models.WSResponse{Type: models.FrameConnected, RoomID: roomID}); err != nil {
		log.Warn().Err(err).Msg("Failed to send connected frame")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	evs, err := events.Follow(ctx, h.rdb, roomID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to follow room")
		sock.reply(models.WSResponse{Type: models.FrameError, Text: "Room events are unavailable."})
		return
	}

	go func() {
		for ev := range evs {
			if err := sock.write(ev); err != nil {
				log.Debug().Err(err).Msg("Failed to write event")
				cancel()
				return
			}
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("WebSocket closed unexpectedly")
			}
			return
		}

		cmd, err := adapters.NormalizeCommand(roomID, frame)
		if err != nil {
			sock.reply(models.WSResponse{Type: models.FrameError, Text: err.Error(), RoomID: roomID})
			continue
		}

		sctx, scancel := context.WithTimeout(ctx, sendTimeout)
		err = router.Send(sctx, h.rdb, cmd)
		scancel()
		if err != nil {
			log.Error().Err(err).Str("type", string(cmd.Type)).Msg("Failed to publish command")
			sock.reply(models.WSResponse{
				Type:   models.FrameError,
				Text:   "Could not deliver the command. Please try again.",
				RoomID: roomID,
			})
		}
	}
}
