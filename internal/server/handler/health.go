package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	store  SnapshotReader
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(store SnapshotReader, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// HealthCheck reports that the console is up and whether the bot answers.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Read()
	resp := map[string]any{
		"status":    "ok",
		"bot_state": snap.State,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if snap.LastUpdate != nil {
		resp["last_update"] = snap.LastUpdate.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
