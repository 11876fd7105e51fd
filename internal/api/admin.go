package api

import (
	"net/http"

	"github.com/ferrite-ai/ferrite/internal/engine"
	"github.com/ferrite-ai/ferrite/internal/log"
)

// adminHandler serves engine maintenance endpoints.
type adminHandler struct {
	engines *engine.Manager
	logger  log.Logger
}

// reload handles POST /api/v1/reload: rebuild the engine immediately.
// In-flight turns keep the engine they started with.
func (h *adminHandler) reload(w http.ResponseWriter, r *http.Request) {
	if err := h.engines.Reload(r.Context()); err != nil {
		h.logger.Error("engine reload", "error", err)
		writeError(w, http.StatusInternalServerError, "reload_failed", "failed to rebuild engine", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"}, h.logger)
}

// upstreamStatus handles GET /api/v1/upstream-status with a fresh
// reachability probe of the model provider.
func (h *adminHandler) upstreamStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"reachable": h.engines.UpstreamReachable()}, h.logger)
}
