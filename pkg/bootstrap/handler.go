package bootstrap

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kubarr/kubarr/internal/apperrors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler exposes the bootstrap sequence's status over HTTP polling and
// a WebSocket stream, for the first-boot setup UI.
type Handler struct {
	orch   *Orchestrator
	logger *slog.Logger
}

func NewHandler(orch *Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{orch: orch, logger: logger}
}

// Routes returns the /bootstrap sub-router. Deliberately unauthenticated:
// there may be no users yet to authenticate as during initial setup.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.handleStatus)
	r.Get("/ws", h.handleWS)
	r.Post("/retry/{component}", h.handleRetry)
	return r
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	components, err := h.orch.GetStatus(r.Context())
	if err != nil {
		h.logger.Error("bootstrap: reading status", "error", err)
		apperrors.Write(w, apperrors.Internal("failed to read bootstrap status"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(components)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	component := chi.URLParam(r, "component")
	if !h.orch.HasComponent(component) {
		apperrors.Write(w, apperrors.NotFound("unknown component: "+component))
		return
	}

	go func() {
		if err := h.orch.Retry(context.Background(), component); err != nil {
			h.logger.Error("bootstrap: retrying component", "component", component, "error", err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("bootstrap: upgrading websocket", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := h.orch.Subscribe()
	defer unsubscribe()

	for event := range events {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}
