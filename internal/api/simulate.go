package api

import (
	"net/http"
	"strconv"

	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/report"
	"github.com/ashureev/ailab/internal/session"
	"github.com/go-chi/chi/v5"
)

// StartRequest is the body of POST /simulate/start.
type StartRequest struct {
	ExperimentID string `json:"experiment_id"`
	Level        string `json:"level,omitempty"`
	StudentName  string `json:"student_name,omitempty"`
}

// StepSummary is the slice of a step returned when a session starts.
type StepSummary struct {
	Number       int    `json:"step_number"`
	Title        string `json:"title"`
	Instructions string `json:"instructions"`
}

// StartResponse is returned by POST /simulate/start.
type StartResponse struct {
	SessionID       string      `json:"session_id"`
	ExperimentID    string      `json:"experiment_id"`
	ExperimentTitle string      `json:"experiment_title"`
	StudentName     string      `json:"student_name,omitempty"`
	PartnerMessage  string      `json:"partner_message"`
	FirstStep       StepSummary `json:"first_step"`
	TotalSteps      int         `json:"total_steps"`
}

// InteractRequest is the body of POST /simulate/interact.
type InteractRequest struct {
	SessionID      string `json:"session_id"`
	ExperimentID   string `json:"experiment_id"`
	StudentMessage string `json:"student_message"`
	CurrentStep    *int   `json:"current_step,omitempty"`
}

// InteractResponse is returned by POST /simulate/interact.
type InteractResponse struct {
	SessionID      string                    `json:"session_id"`
	ExperimentID   string                    `json:"experiment_id"`
	PartnerMessage string                    `json:"partner_message"`
	MentorGuidance string                    `json:"mentor_guidance"`
	Computation    *domain.ComputationResult `json:"wolfram_result"`
	CurrentStep    int                       `json:"current_step"`
	TotalSteps     int                       `json:"total_steps"`
	Progress       float64                   `json:"progress"`
}

// CompleteRequest identifies the session to complete.
type CompleteRequest struct {
	SessionID    string `json:"session_id"`
	ExperimentID string `json:"experiment_id"`
}

// CompleteResponse is returned by POST /simulate/complete.
type CompleteResponse struct {
	SessionID         string        `json:"session_id"`
	ExperimentID      string        `json:"experiment_id"`
	Status            string        `json:"status"`
	EvaluatorFeedback string        `json:"evaluator_feedback"`
	Report            report.Result `json:"report"`
	MessageCount      int           `json:"message_count"`
	Message           string        `json:"message"`
}

// SimulationHandler serves the session lifecycle endpoints.
type SimulationHandler struct {
	*Handler
}

// NewSimulationHandler creates a simulation handler.
func NewSimulationHandler(base *Handler) *SimulationHandler {
	return &SimulationHandler{Handler: base}
}

// RegisterRoutes registers session routes.
func (h *SimulationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/simulate", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Post("/interact", h.Interact)
		r.Post("/complete", h.Complete)
	})
}

// Start opens a session. Fields may come from the JSON body or the query.
func (h *SimulationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	req.ExperimentID = firstNonEmpty(req.ExperimentID, q.Get("experiment_id"))
	req.Level = firstNonEmpty(req.Level, q.Get("level"))
	req.StudentName = firstNonEmpty(req.StudentName, q.Get("student_name"))
	if req.ExperimentID == "" {
		Error(w, http.StatusBadRequest, "experiment_id is required")
		return
	}

	res, err := h.sessions.Start(r.Context(), req.ExperimentID, req.StudentName, req.Level)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	scenario, _ := h.catalog.Get(req.ExperimentID)
	JSON(w, http.StatusOK, StartResponse{
		SessionID:       res.Session.ID,
		ExperimentID:    res.Session.ScenarioID,
		ExperimentTitle: scenario.Title,
		StudentName:     res.Session.StudentName,
		PartnerMessage:  res.PartnerMessage,
		FirstStep: StepSummary{
			Number:       res.FirstStep.Number,
			Title:        res.FirstStep.Title,
			Instructions: res.FirstStep.Instructions,
		},
		TotalSteps: res.Session.TotalSteps,
	})
}

// Interact runs one student turn.
func (h *SimulationHandler) Interact(w http.ResponseWriter, r *http.Request) {
	var req InteractRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	req.SessionID = firstNonEmpty(req.SessionID, q.Get("session_id"))
	req.ExperimentID = firstNonEmpty(req.ExperimentID, q.Get("experiment_id"))
	req.StudentMessage = firstNonEmpty(req.StudentMessage, q.Get("student_message"))
	if req.CurrentStep == nil && q.Get("current_step") != "" {
		n, err := strconv.Atoi(q.Get("current_step"))
		if err != nil {
			Error(w, http.StatusBadRequest, "current_step must be an integer")
			return
		}
		req.CurrentStep = &n
	}
	if req.SessionID == "" || req.ExperimentID == "" {
		Error(w, http.StatusBadRequest, "session_id and experiment_id are required")
		return
	}

	res, err := h.sessions.Interact(r.Context(), session.InteractRequest{
		SessionID:  req.SessionID,
		ScenarioID: req.ExperimentID,
		Message:    req.StudentMessage,
		Step:       req.CurrentStep,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	JSON(w, http.StatusOK, InteractResponse{
		SessionID:      req.SessionID,
		ExperimentID:   req.ExperimentID,
		PartnerMessage: res.PartnerMessage,
		MentorGuidance: res.MentorGuidance,
		Computation:    res.Computation,
		CurrentStep:    res.CurrentStep,
		TotalSteps:     res.TotalSteps,
		Progress:       res.Progress,
	})
}

// Complete finishes a session and returns the evaluator feedback and report.
func (h *SimulationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	req.SessionID = firstNonEmpty(req.SessionID, q.Get("session_id"))
	req.ExperimentID = firstNonEmpty(req.ExperimentID, q.Get("experiment_id"))
	if req.SessionID == "" || req.ExperimentID == "" {
		Error(w, http.StatusBadRequest, "session_id and experiment_id are required")
		return
	}

	res, err := h.sessions.Complete(r.Context(), req.SessionID, req.ExperimentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	msg := "Experiment completed. Lab report saved to " + res.Report.Filename + "."
	if !res.Report.Saved {
		msg = "Experiment completed. The lab report could not be saved."
		h.logger.Warn("Report not saved",
			"session_id", res.SessionID,
			"error", res.Report.Error,
		)
	}
	JSON(w, http.StatusOK, CompleteResponse{
		SessionID:         res.SessionID,
		ExperimentID:      req.ExperimentID,
		Status:            res.Status,
		EvaluatorFeedback: res.EvaluatorFeedback,
		Report:            res.Report,
		MessageCount:      res.MessageCount,
		Message:           msg,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
