package proxy

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kubarr/kubarr/internal/apperrors"
)

// Handler mounts the app reverse-proxy surface: /{app_name}, /{app_name}/
// and /{app_name}/{*path}, dispatching to either the WebSocket or HTTP
// proxy depending on the request.
type Handler struct {
	resolver *Resolver
	http     *HTTPProxy
	ws       *WSProxy
	logger   *slog.Logger
}

func NewHandler(resolver *Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		http:     NewHTTPProxy(),
		ws:       NewWSProxy(logger),
		logger:   logger,
	}
}

// AppName extracts the {app_name} chi URL parameter from a request, for
// use with auth.RequireAppAccess.
func AppName(r *http.Request) string {
	return chi.URLParam(r, "app_name")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	appName := chi.URLParam(r, "app_name")
	path := chi.URLParam(r, "*")

	ep, err := h.resolver.Resolve(r.Context(), appName)
	if err != nil {
		switch {
		case errors.Is(err, ErrClusterUnavailable):
			apperrors.Write(w, apperrors.ServiceUnavailable("kubernetes cluster unavailable"))
		case errors.Is(err, ErrServiceNotFound):
			apperrors.Write(w, apperrors.NotFound("app not found or not running"))
		default:
			h.logger.Error("proxy: resolving app", "app", appName, "error", err)
			apperrors.Write(w, apperrors.Internal("failed to resolve app"))
		}
		return
	}

	target := JoinPath(ep, path)
	if IsUpgrade(r) {
		h.ws.ServeApp(w, r, target)
		return
	}
	h.http.ServeApp(w, r, target)
}
