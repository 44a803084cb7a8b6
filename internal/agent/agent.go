// Package agent implements the lab personas that turn session context into
// generated text.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/generator"
)

// StudentSender labels messages authored by the student.
const StudentSender = "Student"

// Context is the caller-supplied input for one Respond call. Fields that a
// persona does not use are ignored.
type Context struct {
	ScenarioID     string
	ExperimentName string
	StudentName    string
	Step           int
	TotalSteps     int
	StepTitle      string
	Instructions   string
	StudentMessage string
	// Excerpt is the recent conversation shown to the mentor.
	Excerpt []domain.AgentMessage
	// Summary is the short session recap shown to the evaluator.
	Summary string
}

// Progress returns Step/TotalSteps, or 0 when the total is unknown.
func (c Context) Progress() float64 {
	if c.TotalSteps <= 0 {
		return 0
	}
	return float64(c.Step) / float64(c.TotalSteps)
}

// Observer is called for every message appended to an agent log.
type Observer func(msg domain.AgentMessage)

// Options wires an agent into its session.
type Options struct {
	Generator generator.Generator
	// Seq is shared by all agents of one session so that their logs can be
	// merged into a single ordered transcript.
	Seq      *atomic.Int64
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Agent is a persona with an append-only conversation log. It is safe for
// concurrent use.
type Agent struct {
	persona  Persona
	gen      generator.Generator
	seq      *atomic.Int64
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	mu           sync.Mutex
	log          []domain.AgentMessage
	observations []domain.Observation
	whatIfs      int
}

// New creates an agent for persona p.
func New(p Persona, opts Options) *Agent {
	if opts.Seq == nil {
		opts.Seq = new(atomic.Int64)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Generator == nil {
		opts.Generator = generator.NewStatic()
	}
	return &Agent{
		persona:  p,
		gen:      opts.Generator,
		seq:      opts.Seq,
		observer: opts.Observer,
		logger:   opts.Logger.With("agent", p.Name, "role", string(p.Role)),
		now:      opts.Now,
	}
}

// Persona returns the agent's persona.
func (a *Agent) Persona() Persona {
	return a.persona
}

// Name returns the persona name used as message sender.
func (a *Agent) Name() string {
	return a.persona.Name
}

// Role returns the persona role.
func (a *Agent) Role() domain.Role {
	return a.persona.Role
}

// Respond builds the role prompt, calls the generator once and records the
// exchange. A generation failure is logged and replaced by the persona's
// fallback sentence; it is never returned to the caller.
func (a *Agent) Respond(ctx context.Context, c Context) string {
	text, turn := a.Stage(ctx, c)
	turn.Commit()
	return text
}

// mark records the sizes of the agent state before a turn.
type mark struct {
	log          int
	observations int
	whatIfs      int
}

// Turn is a staged Respond call. Its messages are already in the agent log
// but observers have not seen them. Exactly one of Commit or Rollback should
// be called.
type Turn struct {
	agent *Agent
	mark  mark
	msgs  []domain.AgentMessage
	done  bool
}

// Stage works like Respond but holds back observer notification until the
// returned turn is committed. Stage and Rollback assume the caller serialises
// turns on the agent.
func (a *Agent) Stage(ctx context.Context, c Context) (string, *Turn) {
	a.mu.Lock()
	before := mark{log: len(a.log), observations: len(a.observations), whatIfs: a.whatIfs}
	req, meta := a.buildRequest(c)
	a.mu.Unlock()

	staged := false
	defer func() {
		if !staged {
			a.restore(before)
		}
	}()

	text, err := a.gen.Generate(ctx, req)

	a.mu.Lock()
	defer a.mu.Unlock()

	turn := &Turn{agent: a, mark: before}
	if c.StudentMessage != "" {
		turn.msgs = append(turn.msgs, a.appendLocked(StudentSender, domain.RoleStudent, c.StudentMessage, nil))
	}
	if err != nil {
		if !errors.Is(err, generator.ErrUnavailable) {
			err = errors.Join(generator.ErrUnavailable, err)
		}
		a.logger.Warn("generation failed, using fallback",
			"experiment_id", c.ScenarioID,
			"step", c.Step,
			"error", err,
		)
		text = a.persona.Fallback
		if meta == nil {
			meta = make(map[string]any, 1)
		}
		meta[domain.MetaError] = err.Error()
	}
	turn.msgs = append(turn.msgs, a.appendLocked(a.persona.Name, a.persona.Role, text, meta))
	staged = true
	return text, turn
}

// Commit notifies the observer of the staged messages.
func (t *Turn) Commit() {
	if t == nil || t.done {
		return
	}
	t.done = true
	if t.agent.observer == nil {
		return
	}
	for _, msg := range t.msgs {
		t.agent.observer(msg)
	}
}

// Rollback removes the staged messages and restores the persona memory to
// its state before the turn.
func (t *Turn) Rollback() {
	if t == nil || t.done {
		return
	}
	t.done = true
	t.agent.restore(t.mark)
}

func (a *Agent) restore(m mark) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.log) > m.log {
		a.log = a.log[:m.log]
	}
	if len(a.observations) > m.observations {
		a.observations = a.observations[:m.observations]
	}
	a.whatIfs = m.whatIfs
}

func (a *Agent) appendLocked(sender string, role domain.Role, content string, meta map[string]any) domain.AgentMessage {
	msg := domain.AgentMessage{
		Seq:       a.seq.Add(1),
		Sender:    sender,
		Role:      role,
		Content:   content,
		Metadata:  meta,
		Timestamp: a.now().UTC(),
	}
	a.log = append(a.log, msg)
	return msg
}

// Reset clears the log, the remembered observations and the what-if counter.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.log = nil
	a.observations = nil
	a.whatIfs = 0
}

// History returns the most recent limit entries, oldest first. A limit of
// zero or less returns the whole log.
func (a *Agent) History(limit int) []domain.AgentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return tail(a.log, limit)
}

// Observations returns the remembered step observations in insertion order.
func (a *Agent) Observations() []domain.Observation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Observation, len(a.observations))
	copy(out, a.observations)
	return out
}

// WhatIfCount returns how many exploratory prompts have been requested.
func (a *Agent) WhatIfCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.whatIfs
}

func tail(msgs []domain.AgentMessage, limit int) []domain.AgentMessage {
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}
	out := make([]domain.AgentMessage, len(msgs)-start)
	copy(out, msgs[start:])
	return out
}
