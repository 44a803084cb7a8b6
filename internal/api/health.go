package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "ailab"

// HealthHandler reports liveness.
type HealthHandler struct {
	*Handler
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(base *Handler) *HealthHandler {
	return &HealthHandler{Handler: base}
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
}

// Health returns a liveness marker with the number of live sessions.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"service":         ServiceName,
		"version":         h.version,
		"active_sessions": h.sessions.Len(),
	})
}
