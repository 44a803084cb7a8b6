package api

import (
	"net/http"

	"github.com/ashureev/ailab/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ExperimentSummary is the list view of a scenario.
type ExperimentSummary struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Subject         domain.Subject `json:"subject"`
	Level           domain.Level   `json:"level"`
	DurationMinutes int            `json:"duration_minutes"`
	Description     string         `json:"description"`
	TotalSteps      int            `json:"total_steps"`
}

// ExperimentHandler serves the scenario catalog.
type ExperimentHandler struct {
	*Handler
}

// NewExperimentHandler creates an experiment handler.
func NewExperimentHandler(base *Handler) *ExperimentHandler {
	return &ExperimentHandler{Handler: base}
}

// RegisterRoutes registers catalog routes.
func (h *ExperimentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/experiments", h.List)
	r.Get("/experiments/{id}", h.Get)
}

// List returns a summary of every scenario in catalog order.
func (h *ExperimentHandler) List(w http.ResponseWriter, r *http.Request) {
	scenarios := h.catalog.List()
	out := make([]ExperimentSummary, 0, len(scenarios))
	for i := range scenarios {
		s := &scenarios[i]
		out = append(out, ExperimentSummary{
			ID:              s.ID,
			Title:           s.Title,
			Subject:         s.Subject,
			Level:           s.Level,
			DurationMinutes: s.DurationMinutes,
			Description:     s.Description,
			TotalSteps:      s.TotalSteps(),
		})
	}
	JSON(w, http.StatusOK, map[string]any{"experiments": out})
}

// Get returns the full scenario including steps.
func (h *ExperimentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scenario, ok := h.catalog.Get(id)
	if !ok {
		Error(w, http.StatusNotFound, "experiment '"+id+"' not found")
		return
	}
	JSON(w, http.StatusOK, scenario)
}
