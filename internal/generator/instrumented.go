package generator

import (
	"context"
	"time"

	"github.com/ashureev/ailab/internal/domain"
)

// Outcome labels recorded per generation call.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder receives one observation per generation call.
type Recorder interface {
	ObserveGeneration(role domain.Role, outcome string, elapsed time.Duration)
}

// Instrumented wraps a Generator and reports every call to a Recorder.
type Instrumented struct {
	next     Generator
	recorder Recorder
}

// NewInstrumented decorates next. A nil recorder disables reporting.
func NewInstrumented(next Generator, recorder Recorder) *Instrumented {
	return &Instrumented{next: next, recorder: recorder}
}

// Generate forwards to the wrapped generator.
func (g *Instrumented) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := g.next.Generate(ctx, req)
	if g.recorder != nil {
		outcome := OutcomeOK
		if err != nil {
			outcome = OutcomeError
		}
		g.recorder.ObserveGeneration(req.Role, outcome, time.Since(start))
	}
	return text, err
}
