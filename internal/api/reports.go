package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const defaultReportLimit = 50

// ReportHandler serves stored lab reports.
type ReportHandler struct {
	*Handler
}

// NewReportHandler creates a report handler.
func NewReportHandler(base *Handler) *ReportHandler {
	return &ReportHandler{Handler: base}
}

// RegisterRoutes registers report routes.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports", h.List)
	r.Get("/reports/{session_id}", h.Get)
}

// List returns indexed reports, newest first.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultReportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := h.reports.List(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if recs == nil {
		JSON(w, http.StatusOK, map[string]any{"reports": []any{}})
		return
	}
	JSON(w, http.StatusOK, map[string]any{"reports": recs})
}

// Get returns a report as markdown, or as JSON when format=json or the
// client accepts only JSON.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	rec, markdown, err := h.reports.Get(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if wantsJSON(r) {
		JSON(w, http.StatusOK, map[string]any{
			"report":   rec,
			"markdown": markdown,
		})
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+rec.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(markdown))
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/markdown")
}
