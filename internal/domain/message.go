package domain

import "time"

// Role tags the author of an agent message.
type Role string

const (
	RoleStudent   Role = "student"
	RolePartner   Role = "partner"
	RoleMentor    Role = "mentor"
	RoleEvaluator Role = "evaluator"
)

// Metadata keys attached to agent messages.
const (
	MetaStep        = "step"
	MetaWhatIfCount = "what_if_count"
	MetaError       = "error"
)

// AgentMessage is one entry of an agent's append-only conversation log.
type AgentMessage struct {
	Seq       int64          `json:"seq"`
	Sender    string         `json:"sender"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// IsFallback returns true if the message was substituted after a generation failure.
func (m AgentMessage) IsFallback() bool {
	_, ok := m.Metadata[MetaError]
	return ok
}

// Observation is a short note the partner remembers about a step.
type Observation struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
