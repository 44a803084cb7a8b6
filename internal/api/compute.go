package api

import (
	"net/http"

	"github.com/ashureev/ailab/internal/formula"
	"github.com/go-chi/chi/v5"
)

// ComputeRequest carries formula parameters by name.
type ComputeRequest struct {
	Params map[string]float64 `json:"params"`
}

// ComputeHandler exposes the closed-form formulas.
type ComputeHandler struct {
	*Handler
}

// NewComputeHandler creates a compute handler.
func NewComputeHandler(base *Handler) *ComputeHandler {
	return &ComputeHandler{Handler: base}
}

// RegisterRoutes registers formula routes.
func (h *ComputeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/formulas", h.List)
	r.Post("/compute/{formula}", h.Compute)
}

// List describes every formula and its parameters.
func (h *ComputeHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"formulas": formula.List()})
}

// Compute evaluates a formula with caller-supplied parameters.
func (h *ComputeHandler) Compute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "formula")
	if !formula.Known(id) {
		Error(w, http.StatusNotFound, "formula '"+id+"' not found")
		return
	}

	var req ComputeRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := formula.Evaluate(id, req.Params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, result)
}
