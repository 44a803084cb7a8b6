// Package session orchestrates lab sessions: start, interact and complete.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/ailab/internal/agent"
	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/events"
	"github.com/ashureev/ailab/internal/generator"
	"github.com/ashureev/ailab/internal/report"
	"github.com/google/uuid"
)

// StatusCompleted is the status reported by Complete.
const StatusCompleted = "completed"

// Catalog resolves scenario ids.
type Catalog interface {
	Get(id string) (domain.ExperimentScenario, bool)
}

// Reporter persists rendered reports.
type Reporter interface {
	Save(ctx context.Context, doc report.Document) report.Result
}

// Recorder receives session metrics.
type Recorder interface {
	SessionEvent(experimentID, event string)
	SetActiveSessions(n int)
	Interaction(experimentID, outcome string)
	Computation(formula, outcome string)
	Report(outcome string)
	Evicted(n int)
}

// Streamer fans out agent messages and is told when a session ends.
type Streamer interface {
	Observer(sessionID string) func(domain.AgentMessage)
	CloseSession(sessionID string)
}

// Deps are the collaborators of a Manager. Only Catalog is required.
type Deps struct {
	Catalog         Catalog
	Generator       generator.Generator
	Personas        agent.Personas
	Reporter        Reporter
	Publisher       events.Publisher
	Stream          Streamer
	ConversationLog agent.ConversationLogger
	Metrics         Recorder
	Logger          *slog.Logger
	Now             func() time.Time
}

// Manager owns the in-memory session registry.
type Manager struct {
	catalog  Catalog
	gen      generator.Generator
	personas agent.Personas
	reporter Reporter
	events   events.Publisher
	stream   Streamer
	convLog  agent.ConversationLogger
	metrics  Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(d Deps) *Manager {
	if d.Generator == nil {
		d.Generator = generator.NewStatic()
	}
	if d.Personas == (agent.Personas{}) {
		d.Personas = agent.DefaultPersonas()
	}
	if d.Publisher == nil {
		d.Publisher = events.Noop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Manager{
		catalog:  d.Catalog,
		gen:      d.Generator,
		personas: d.Personas,
		reporter: d.Reporter,
		events:   d.Publisher,
		stream:   d.Stream,
		convLog:  d.ConversationLog,
		metrics:  d.Metrics,
		logger:   d.Logger,
		now:      d.Now,
		sessions: make(map[string]*Session),
	}
}

// StartResult is returned by Start.
type StartResult struct {
	Session        domain.SessionInfo    `json:"session"`
	PartnerMessage string                `json:"partner_message"`
	FirstStep      domain.ExperimentStep `json:"first_step"`
}

// Start creates a session for scenarioID with three fresh agents and seeds
// the partner with an opening request. Nothing is registered when the
// scenario is unknown.
func (m *Manager) Start(ctx context.Context, scenarioID, studentName, level string) (StartResult, error) {
	scenario, ok := m.catalog.Get(scenarioID)
	if !ok {
		return StartResult{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, scenarioID)
	}
	if level == "" {
		level = string(scenario.Level)
	}

	now := m.now()
	s := &Session{
		id:          uuid.NewString(),
		scenario:    scenario,
		studentName: strings.TrimSpace(studentName),
		level:       level,
		state:       domain.SessionCreated,
		createdAt:   now,
		lastActive:  now,
	}
	s.partner = m.newAgent(s, m.personas.Partner)
	s.mentor = m.newAgent(s, m.personas.Mentor)
	s.evaluator = m.newAgent(s, m.personas.Evaluator)

	first := scenario.FirstStep()
	opening := s.partner.Respond(ctx, agent.Context{
		ScenarioID:     scenario.ID,
		ExperimentName: scenario.Title,
		StudentName:    s.studentName,
		Step:           first.Number,
		TotalSteps:     scenario.TotalSteps(),
		StepTitle:      first.Title,
		Instructions:   first.Instructions,
		StudentMessage: fmt.Sprintf("I want to start the %s experiment", scenario.Title),
	})

	s.state = domain.SessionInProgress
	s.current = first.Number

	m.mu.Lock()
	m.sessions[s.id] = s
	active := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("Lab session started",
		"session_id", s.id,
		"experiment_id", scenario.ID,
		"student_name", s.studentName,
	)
	if m.metrics != nil {
		m.metrics.SessionEvent(scenario.ID, events.TypeStarted)
		m.metrics.SetActiveSessions(active)
	}
	m.publish(ctx, events.Event{
		Type:        events.TypeStarted,
		SessionID:   s.id,
		ScenarioID:  scenario.ID,
		StudentName: s.studentName,
		Step:        s.current,
	})

	return StartResult{
		Session:        s.Info(),
		PartnerMessage: opening,
		FirstStep:      first,
	}, nil
}

func (m *Manager) newAgent(s *Session, p agent.Persona) *agent.Agent {
	var observers []agent.Observer
	if m.convLog != nil {
		observers = append(observers, agent.LogObserver(m.convLog, s.scenario.ID, s.id))
	}
	if m.stream != nil {
		observers = append(observers, m.stream.Observer(s.id))
	}

	var observer agent.Observer
	if len(observers) > 0 {
		observer = func(msg domain.AgentMessage) {
			for _, o := range observers {
				o(msg)
			}
		}
	}
	return agent.New(p, agent.Options{
		Generator: m.gen,
		Seq:       &s.seq,
		Observer:  observer,
		Logger:    m.logger.With("session_id", s.id),
		Now:       m.now,
	})
}

// InteractRequest is the input of Interact. A nil Step means the session's
// current step.
type InteractRequest struct {
	SessionID  string
	ScenarioID string
	Message    string
	Step       *int
}

// InteractResult is returned by Interact.
type InteractResult struct {
	PartnerMessage string                    `json:"partner_message"`
	MentorGuidance string                    `json:"mentor_guidance"`
	Computation    *domain.ComputationResult `json:"computation"`
	Step           domain.ExperimentStep     `json:"step"`
	CurrentStep    int                       `json:"current_step"`
	TotalSteps     int                       `json:"total_steps"`
	Progress       float64                   `json:"progress"`
}

// Interact runs one student turn: partner, then mentor, then the final-step
// computation when the turn is on the last step and it has not run yet.
func (m *Manager) Interact(ctx context.Context, req InteractRequest) (res InteractResult, err error) {
	scenario, ok := m.catalog.Get(req.ScenarioID)
	if !ok {
		return InteractResult{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, req.ScenarioID)
	}
	s, err := m.lookup(req.SessionID)
	if err != nil {
		return InteractResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evicted {
		return InteractResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, s.id)
	}
	if s.scenario.ID != scenario.ID {
		return InteractResult{}, fmt.Errorf("%w: session %s is for %s", ErrScenarioMismatch, s.id, s.scenario.ID)
	}
	if s.state == domain.SessionCompleted {
		return InteractResult{}, fmt.Errorf("%w: %s", ErrSessionCompleted, s.id)
	}

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		if m.metrics != nil {
			m.metrics.Interaction(scenario.ID, outcome)
		}
	}()

	res, commit, err := m.runTurn(ctx, s, req)
	if err != nil {
		m.logger.Error("Interaction failed",
			"session_id", s.id,
			"experiment_id", scenario.ID,
			"error", err,
		)
		return InteractResult{}, err
	}
	commit()

	res.CurrentStep = s.current
	res.TotalSteps = scenario.TotalSteps()
	res.Progress = s.infoLocked().Progress()

	m.publish(ctx, events.Event{
		Type:       events.TypeInteracted,
		SessionID:  s.id,
		ScenarioID: scenario.ID,
		Step:       s.current,
		Progress:   res.Progress,
		Computed:   s.computed,
	})
	return res, nil
}

// runTurn performs the agent calls and the computation without touching
// session fields. The agent messages are staged: the returned commit applies
// the step advance and announces them, and any failure removes them again.
func (m *Manager) runTurn(ctx context.Context, s *Session, req InteractRequest) (res InteractResult, commit func(), err error) {
	var turns []*agent.Turn
	defer func() {
		if err == nil {
			return
		}
		for i := len(turns) - 1; i >= 0; i-- {
			turns[i].Rollback()
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInteractionFailed, r)
		}
	}()

	scenario := s.scenario
	total := scenario.TotalSteps()

	number := s.current
	if req.Step != nil {
		number = *req.Step
	}
	step, ok := scenario.Step(number)
	if !ok {
		m.logger.Warn("Step out of range, using first step",
			"session_id", s.id,
			"requested_step", number,
			"total_steps", total,
		)
		step = scenario.FirstStep()
	}

	partnerMsg, partnerTurn := s.partner.Stage(ctx, agent.Context{
		ScenarioID:     scenario.ID,
		ExperimentName: scenario.Title,
		StudentName:    s.studentName,
		Step:           step.Number,
		TotalSteps:     total,
		StepTitle:      step.Title,
		Instructions:   step.Instructions,
		StudentMessage: req.Message,
	})
	turns = append(turns, partnerTurn)

	mentorMsg, mentorTurn := s.mentor.Stage(ctx, agent.Context{
		ScenarioID:     scenario.ID,
		ExperimentName: scenario.Title,
		Step:           step.Number,
		TotalSteps:     total,
		Excerpt:        s.partner.History(2),
	})
	turns = append(turns, mentorTurn)

	var computed *domain.ComputationResult
	if step.Number == total && !s.computed {
		if run, ok := finalComputations[scenario.ID]; ok {
			result, cerr := run()
			if m.metrics != nil {
				outcome := "ok"
				if cerr != nil {
					outcome = "error"
				}
				m.metrics.Computation(result.Formula, outcome)
			}
			if cerr != nil {
				return InteractResult{}, nil, fmt.Errorf("%w: final computation: %v", ErrInteractionFailed, cerr)
			}
			computed = &result
		}
	}

	commit = func() {
		s.current = max(s.current, min(step.Number+1, total))
		if computed != nil {
			s.computed = true
			s.results = append(s.results, *computed)
		}
		s.state = domain.SessionInProgress
		s.lastActive = m.now()
		for _, t := range turns {
			t.Commit()
		}
	}

	return InteractResult{
		PartnerMessage: partnerMsg,
		MentorGuidance: mentorMsg,
		Computation:    computed,
		Step:           step,
	}, commit, nil
}

// Complete asks the evaluator for feedback once, assembles the report and
// marks the session completed. Storage failures are reported in the result.
// Calling Complete again returns the first result.
func (m *Manager) Complete(ctx context.Context, sessionID, scenarioID string) (CompleteResult, error) {
	scenario, ok := m.catalog.Get(scenarioID)
	if !ok {
		return CompleteResult{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, scenarioID)
	}
	s, err := m.lookup(sessionID)
	if err != nil {
		return CompleteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evicted {
		return CompleteResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, s.id)
	}
	if s.scenario.ID != scenario.ID {
		return CompleteResult{}, fmt.Errorf("%w: session %s is for %s", ErrScenarioMismatch, s.id, s.scenario.ID)
	}
	if s.completion != nil {
		return *s.completion, nil
	}

	feedback := s.evaluator.Respond(ctx, agent.Context{
		ScenarioID:     scenario.ID,
		ExperimentName: scenario.Title,
		StudentName:    s.studentName,
		Step:           s.current,
		TotalSteps:     scenario.TotalSteps(),
		Summary:        m.summaryLocked(s),
	})

	transcript := s.transcriptLocked()
	doc := report.Assemble(report.Input{
		SessionID:    s.id,
		Scenario:     scenario,
		StudentName:  s.studentName,
		Transcript:   transcript,
		Observations: s.partner.Observations(),
		Computations: s.results,
		Feedback:     feedback,
		GeneratedAt:  m.now(),
	})

	saved := report.Result{Filename: doc.Filename}
	if m.reporter != nil {
		saved = m.reporter.Save(ctx, doc)
	}
	if m.metrics != nil {
		outcome := "saved"
		if !saved.Saved {
			outcome = "unsaved"
		}
		m.metrics.Report(outcome)
		m.metrics.SessionEvent(scenario.ID, events.TypeCompleted)
	}

	result := CompleteResult{
		Status:            StatusCompleted,
		SessionID:         s.id,
		EvaluatorFeedback: feedback,
		Report:            saved,
		MessageCount:      len(transcript),
		transcript:        transcript,
	}
	s.completion = &result
	s.state = domain.SessionCompleted
	s.lastActive = m.now()
	s.partner, s.mentor, s.evaluator = nil, nil, nil

	if m.stream != nil {
		m.stream.CloseSession(s.id)
	}

	m.logger.Info("Lab session completed",
		"session_id", s.id,
		"experiment_id", scenario.ID,
		"messages", len(transcript),
		"report_saved", saved.Saved,
	)
	m.publish(ctx, events.Event{
		Type:       events.TypeCompleted,
		SessionID:  s.id,
		ScenarioID: scenario.ID,
		Step:       s.current,
		Computed:   s.computed,
		ReportPath: saved.Path,
	})
	return result, nil
}

func (m *Manager) summaryLocked(s *Session) string {
	students := 0
	for _, msg := range s.partner.History(0) {
		if msg.Role == domain.RoleStudent {
			students++
		}
	}
	summary := fmt.Sprintf("reached step %d of %d with %d student messages", s.current, s.scenario.TotalSteps(), students)
	for _, r := range s.results {
		summary += "; " + r.Result
	}
	return summary
}

func (m *Manager) lookup(sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s, nil
}

// Get returns the session registered under id.
func (m *Manager) Get(sessionID string) (*Session, error) {
	return m.lookup(sessionID)
}

// Active reports whether a session exists and has not completed.
func (m *Manager) Active(sessionID string) bool {
	s, err := m.lookup(sessionID)
	if err != nil {
		return false
	}
	return s.Info().State != domain.SessionCompleted
}

// List returns snapshots of every registered session, oldest first.
func (m *Manager) List() []domain.SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]domain.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	e.Timestamp = m.now().UTC()
	if err := m.events.Publish(ctx, e); err != nil {
		m.logger.Warn("failed to publish session event",
			"session_id", e.SessionID,
			"event", e.Type,
			"error", err,
		)
	}
}
