package api

import (
	"net/http"
	"time"

	"github.com/chatforge/chatforge/internal/api/respond"
	"github.com/chatforge/chatforge/internal/conversation"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo *conversation.Repository
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo *conversation.Repository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// CheckHealth handles GET /api/health.
// Always returns 200; the body reports whether the durable store is
// reachable. The service stays up on the fallback either way.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	durable := "disconnected"
	if h.repo.Connected() {
		durable = "connected"
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"durable":   durable,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
