package helm

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kubarr/kubarr/internal/apperrors"
	"github.com/kubarr/kubarr/internal/auth"
	"github.com/kubarr/kubarr/internal/httpserver"
)

// InstallRequest is the optional JSON body for POST /{app_name}/install,
// carrying Helm --set overrides keyed by chart value path.
type InstallRequest struct {
	Values map[string]string `json:"values"`
}

// Handler exposes app lifecycle operations (install, remove, restart,
// health) backed by a Driver.
type Handler struct {
	driver *Driver
	logger *slog.Logger
}

func NewHandler(driver *Driver, logger *slog.Logger) *Handler {
	return &Handler{driver: driver, logger: logger}
}

// Routes returns the /apps/{app_name}/* sub-router. Mount under an
// already-authenticated router; each route still checks its own
// permission since install/delete/restart/view carry different grants.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequirePermission(auth.PermAppsInstall)).Post("/{app_name}/install", h.handleInstall)
	r.With(auth.RequirePermission(auth.PermAppsDelete)).Delete("/{app_name}", h.handleRemove)
	r.With(auth.RequirePermission(auth.PermAppsRestart)).Post("/{app_name}/restart", h.handleRestart)
	r.With(auth.RequirePermission(auth.PermAppsView)).Get("/{app_name}/health", h.handleHealth)
	return r
}

func (h *Handler) handleInstall(w http.ResponseWriter, r *http.Request) {
	appName := chi.URLParam(r, "app_name")

	var req InstallRequest
	if r.ContentLength != 0 {
		if err := httpserver.Decode(r, &req); err != nil {
			apperrors.Write(w, apperrors.BadRequest(err.Error()))
			return
		}
	}

	if err := h.driver.Deploy(r.Context(), appName, req.Values); err != nil {
		h.logger.Error("helm: deploying app", "app", appName, "error", err)
		apperrors.Write(w, apperrors.Internal("failed to install app"))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	appName := chi.URLParam(r, "app_name")
	if err := h.driver.Remove(r.Context(), appName); err != nil {
		h.logger.Error("helm: removing app", "app", appName, "error", err)
		apperrors.Write(w, apperrors.Internal("failed to remove app"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	appName := chi.URLParam(r, "app_name")
	if err := h.driver.Deploy(r.Context(), appName, nil); err != nil {
		h.logger.Error("helm: restarting app", "app", appName, "error", err)
		apperrors.Write(w, apperrors.Internal("failed to restart app"))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	appName := chi.URLParam(r, "app_name")
	health, err := h.driver.CheckHealth(r.Context(), appName)
	if err != nil {
		h.logger.Error("helm: checking health", "app", appName, "error", err)
		apperrors.Write(w, apperrors.Internal("failed to check app health"))
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
