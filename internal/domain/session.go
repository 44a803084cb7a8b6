package domain

import (
	"time"
)

// SessionState is the lifecycle phase of a lab session.
type SessionState string

const (
	SessionCreated    SessionState = "created"
	SessionInProgress SessionState = "in_progress"
	SessionCompleted  SessionState = "completed"
)

// SessionInfo is a read-only view of a lab session.
type SessionInfo struct {
	ID           string       `json:"session_id"`
	ScenarioID   string       `json:"experiment_id"`
	StudentName  string       `json:"student_name"`
	Level        string       `json:"level,omitempty"`
	State        SessionState `json:"state"`
	CurrentStep  int          `json:"current_step"`
	TotalSteps   int          `json:"total_steps"`
	Computed     bool         `json:"computed"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActiveAt time.Time    `json:"last_active_at"`
}

// Progress returns the completion percentage for the current step.
func (s SessionInfo) Progress() float64 {
	if s.TotalSteps == 0 {
		return 0
	}
	return float64(s.CurrentStep) / float64(s.TotalSteps) * 100
}

// IdleFor returns how long the session has been inactive.
func (s SessionInfo) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(s.LastActiveAt)
	if idle < 0 {
		return 0
	}
	return idle
}
