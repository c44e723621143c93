package handler

import (
	"net/http"
)

// Pinger reports whether a backing connection is up.
type Pinger interface {
	IsConnected() bool
}

// HealthHandler handles health and readiness endpoints.
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler creates a new health handler. store may be nil when the
// process runs against an in-memory store.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready. Not ready while the conversation store is
// unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.store != nil && !h.store.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
