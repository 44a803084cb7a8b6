package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/ailab/internal/agent"
	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/report"
)

// Session is one student's attempt at one scenario. All fields are guarded by
// mu; operations on a session are serialised.
type Session struct {
	mu sync.Mutex

	id          string
	scenario    domain.ExperimentScenario
	studentName string
	level       string
	state       domain.SessionState
	current     int
	computed    bool
	results     []domain.ComputationResult
	createdAt   time.Time
	lastActive  time.Time

	seq       atomic.Int64
	partner   *agent.Agent
	mentor    *agent.Agent
	evaluator *agent.Agent

	completion *CompleteResult
	evicted    bool
}

// ID returns the session token.
func (s *Session) ID() string {
	return s.id
}

// Info returns a snapshot of the session.
func (s *Session) Info() domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoLocked()
}

func (s *Session) infoLocked() domain.SessionInfo {
	return domain.SessionInfo{
		ID:           s.id,
		ScenarioID:   s.scenario.ID,
		StudentName:  s.studentName,
		Level:        s.level,
		State:        s.state,
		CurrentStep:  s.current,
		TotalSteps:   s.scenario.TotalSteps(),
		Computed:     s.computed,
		CreatedAt:    s.createdAt,
		LastActiveAt: s.lastActive,
	}
}

// Computations returns the results computed so far.
func (s *Session) Computations() []domain.ComputationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ComputationResult, len(s.results))
	copy(out, s.results)
	return out
}

// transcriptLocked merges all agent logs ordered by sequence number.
func (s *Session) transcriptLocked() []domain.AgentMessage {
	var partner, mentor, evaluator []domain.AgentMessage
	if s.partner != nil {
		partner = s.partner.History(0)
	}
	if s.mentor != nil {
		mentor = s.mentor.History(0)
	}
	if s.evaluator != nil {
		evaluator = s.evaluator.History(0)
	}
	return mergeBySeq(partner, mentor, evaluator)
}

// Transcript returns the merged conversation of the session.
func (s *Session) Transcript() []domain.AgentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completion != nil {
		return append([]domain.AgentMessage(nil), s.completion.transcript...)
	}
	return s.transcriptLocked()
}

// mergeBySeq merges logs that are each already ordered by Seq.
func mergeBySeq(logs ...[]domain.AgentMessage) []domain.AgentMessage {
	total := 0
	for _, l := range logs {
		total += len(l)
	}
	out := make([]domain.AgentMessage, 0, total)
	idx := make([]int, len(logs))
	for len(out) < total {
		best := -1
		for i, l := range logs {
			if idx[i] >= len(l) {
				continue
			}
			if best < 0 || l[idx[i]].Seq < logs[best][idx[best]].Seq {
				best = i
			}
		}
		out = append(out, logs[best][idx[best]])
		idx[best]++
	}
	return out
}

// CompleteResult is returned by Complete.
type CompleteResult struct {
	Status            string        `json:"status"`
	SessionID         string        `json:"session_id"`
	EvaluatorFeedback string        `json:"evaluator_feedback"`
	Report            report.Result `json:"report"`
	MessageCount      int           `json:"message_count"`

	transcript []domain.AgentMessage
}
