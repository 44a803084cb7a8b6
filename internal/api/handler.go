// Package api provides HTTP handlers for the lab API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/formula"
	"github.com/ashureev/ailab/internal/report"
	"github.com/ashureev/ailab/internal/session"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Catalog lists and resolves experiment scenarios.
type Catalog interface {
	Get(id string) (domain.ExperimentScenario, bool)
	List() []domain.ExperimentScenario
}

// Sessions runs the lab session lifecycle.
type Sessions interface {
	Start(ctx context.Context, scenarioID, studentName, level string) (session.StartResult, error)
	Interact(ctx context.Context, req session.InteractRequest) (session.InteractResult, error)
	Complete(ctx context.Context, sessionID, scenarioID string) (session.CompleteResult, error)
	Len() int
}

// Reports reads stored lab reports.
type Reports interface {
	Get(ctx context.Context, sessionID string) (*domain.ReportRecord, string, error)
	List(ctx context.Context, limit int) ([]*domain.ReportRecord, error)
}

// Handler provides common handler utilities.
type Handler struct {
	catalog  Catalog
	sessions Sessions
	reports  Reports
	version  string
	logger   *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(catalog Catalog, sessions Sessions, reports Reports, version string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		catalog:  catalog,
		sessions: sessions,
		reports:  reports,
		version:  version,
		logger:   logger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrScenarioNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, report.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrScenarioMismatch),
		errors.Is(err, formula.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionCompleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status it maps to.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	Error(w, status, err.Error())
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid request body: %w", err)
}

// RegisterRoutes registers every lab API route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	NewExperimentHandler(h).RegisterRoutes(r)
	NewSimulationHandler(h).RegisterRoutes(r)
	NewComputeHandler(h).RegisterRoutes(r)
	NewReportHandler(h).RegisterRoutes(r)
	NewHealthHandler(h).RegisterRoutes(r)
}
