package generator

import (
	"context"

	"github.com/ashureev/ailab/internal/domain"
)

// Static answers with canned sentences. It never fails and makes no network
// calls, so it backs offline demos and tests.
type Static struct {
	replies map[domain.Role]string
}

// NewStatic returns a Static generator with the default replies.
func NewStatic() *Static {
	return &Static{replies: map[domain.Role]string{
		domain.RolePartner:   "That's a neat result! What do you think would change if we doubled one of the quantities?",
		domain.RoleMentor:    "Good progress. Before moving on, connect what you observed to the principle behind this step.",
		domain.RoleEvaluator: "You worked through every step and asked good questions. Keep testing your predictions against the data.",
	}}
}

// WithReply overrides the reply for a role.
func (s *Static) WithReply(role domain.Role, text string) *Static {
	s.replies[role] = text
	return s
}

// Generate returns the canned reply for req.Role.
func (s *Static) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", unavailable("%v", err)
	}
	if text, ok := s.replies[req.Role]; ok {
		return text, nil
	}
	return "Let's keep going with the experiment.", nil
}
