package nettelemetry

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler streams the broadcaster's network metrics messages to
// WebSocket clients. Mount behind auth.RequireAuth + RequirePermission.
type Handler struct {
	broadcaster *Broadcaster
	logger      *slog.Logger
}

func NewHandler(broadcaster *Broadcaster, logger *slog.Logger) *Handler {
	return &Handler{broadcaster: broadcaster, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.handleWS)
	return r
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("nettelemetry: upgrading websocket", "error", err)
		return
	}
	defer conn.Close()

	messages, unsubscribe := h.broadcaster.Subscribe()
	defer unsubscribe()

	for msg := range messages {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
