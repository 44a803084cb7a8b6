package agent

import (
	"fmt"
	"strings"

	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/generator"
)

const (
	partnerMemoryWindow  = 10
	partnerRecallLimit   = 3
	maxWhatIfPrompts     = 2
	observationMinLength = 10
	observationMaxLength = 100
)

// Persona holds the fixed parameters of one agent role.
type Persona struct {
	Name         string      `toml:"name" json:"name"`
	Role         domain.Role `toml:"-" json:"role"`
	Personality  string      `toml:"personality" json:"personality"`
	SystemPrompt string      `toml:"system_prompt" json:"-"`
	Temperature  float64     `toml:"temperature" json:"temperature"`
	MaxTokens    int         `toml:"max_tokens" json:"max_tokens"`
	Fallback     string      `toml:"fallback" json:"-"`
}

// Merge returns p with every non-zero field of o applied on top.
func (p Persona) Merge(o Persona) Persona {
	if o.Name != "" {
		p.Name = o.Name
	}
	if o.Personality != "" {
		p.Personality = o.Personality
	}
	if o.SystemPrompt != "" {
		p.SystemPrompt = o.SystemPrompt
	}
	if o.Temperature > 0 {
		p.Temperature = o.Temperature
	}
	if o.MaxTokens > 0 {
		p.MaxTokens = o.MaxTokens
	}
	if o.Fallback != "" {
		p.Fallback = o.Fallback
	}
	return p
}

// Personas is the set of three personas used by every session.
type Personas struct {
	Partner   Persona `toml:"partner"`
	Mentor    Persona `toml:"mentor"`
	Evaluator Persona `toml:"evaluator"`
}

// DefaultPersonas returns the built-in lab partner, mentor and evaluator.
func DefaultPersonas() Personas {
	return Personas{
		Partner:   DefaultPartner(),
		Mentor:    DefaultMentor(),
		Evaluator: DefaultEvaluator(),
	}
}

// Merge applies an overlay to each persona.
func (p Personas) Merge(o Personas) Personas {
	return Personas{
		Partner:   p.Partner.Merge(o.Partner),
		Mentor:    p.Mentor.Merge(o.Mentor),
		Evaluator: p.Evaluator.Merge(o.Evaluator),
	}
}

// DefaultPartner is Alex, the curious lab partner.
func DefaultPartner() Persona {
	return Persona{
		Name:        "Alex",
		Role:        domain.RolePartner,
		Personality: "Curious lab partner, slightly competitive, encourages discussion and collaboration",
		SystemPrompt: `You are Alex, an AI lab partner working next to a student.
- Talk like a fellow student, casually, never like a textbook.
- Ask "what if" questions that explore variations of the experiment.
- Refer back to earlier observations so the student sees you remember them.
- Now and then make a reasonable mistake so the student has to check your thinking.
- Challenge assumptions in a friendly way and propose ideas to try.
Do not just acknowledge. Ask a question or propose a variation every time.
Keep responses conversational and under 150 words.`,
		Temperature: 0.85,
		MaxTokens:   180,
		Fallback:    "Interesting observation! What if we tried varying that parameter? What do you think would happen?",
	}
}

// DefaultMentor is Dr. Silva, who guides through questions.
func DefaultMentor() Persona {
	return Persona{
		Name:        "Dr. Silva",
		Role:        domain.RoleMentor,
		Personality: "Wise mentor, patient, provides guidance through Socratic method",
		SystemPrompt: `You are Dr. Silva, a mentor observing a lab session.
- Watch how the student's understanding develops.
- Point out misconceptions gently.
- Give hints, not answers, and ask guiding questions.
Provide brief guidance only.`,
		Temperature: 0.7,
		MaxTokens:   120,
		Fallback:    "Let's pause and think about what we know so far...",
	}
}

// DefaultEvaluator is Dr. Evaluator, who writes the closing feedback.
func DefaultEvaluator() Persona {
	return Persona{
		Name:         "Dr. Evaluator",
		Role:         domain.RoleEvaluator,
		Personality:  "Fair assessor, provides constructive feedback",
		SystemPrompt: "You provide constructive, encouraging educational feedback.",
		Temperature:  0.5,
		MaxTokens:    100,
		Fallback:     "Great effort! Keep exploring and questioning.",
	}
}

// buildRequest must be called with a.mu held. It may update partner memory.
func (a *Agent) buildRequest(c Context) (generator.Request, map[string]any) {
	req := generator.Request{
		Role:        a.persona.Role,
		System:      a.persona.SystemPrompt,
		Temperature: a.persona.Temperature,
		MaxTokens:   a.persona.MaxTokens,
	}

	var meta map[string]any
	switch a.persona.Role {
	case domain.RolePartner:
		req.Prompt = a.partnerPrompt(c)
		meta = map[string]any{domain.MetaStep: c.Step, domain.MetaWhatIfCount: a.whatIfs}
	case domain.RoleMentor:
		req.Prompt = a.mentorPrompt(c)
		meta = map[string]any{domain.MetaStep: c.Step}
	default:
		req.Prompt = a.evaluatorPrompt(c)
	}
	return req, meta
}

func (a *Agent) partnerPrompt(c Context) string {
	a.rememberLocked(c.Step, c.StudentMessage)

	var b strings.Builder
	fmt.Fprintf(&b, "Experiment: %s\nCurrent Step: %d", c.ExperimentName, c.Step)
	if c.StepTitle != "" {
		fmt.Fprintf(&b, " (%s)", c.StepTitle)
	}
	b.WriteString("\n")
	if c.Instructions != "" {
		fmt.Fprintf(&b, "Step instructions: %s\n", c.Instructions)
	}

	if len(a.observations) > 0 {
		b.WriteString("\nKey observations you remember:\n")
		start := max(0, len(a.observations)-partnerRecallLimit)
		for _, o := range a.observations[start:] {
			fmt.Fprintf(&b, "- %s: %s\n", o.Key, o.Value)
		}
	}

	b.WriteString("\nRecent conversation:\n")
	for _, msg := range tail(a.log, partnerMemoryWindow) {
		fmt.Fprintf(&b, "%s: %s\n", msg.Sender, msg.Content)
	}

	fmt.Fprintf(&b, "\nStudent just said: %s\n", c.StudentMessage)

	if a.whatIfs < maxWhatIfPrompts && c.Step > 1 {
		a.whatIfs++
		b.WriteString("\nIMPORTANT: In this response, ask a 'What if' question to explore a variation of the experiment.\n")
	}

	fmt.Fprintf(&b, "\n%s (respond with curiosity and at least one question):", a.persona.Name)
	return b.String()
}

// rememberLocked stores the first substantial student message of each step.
func (a *Agent) rememberLocked(step int, message string) {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) <= observationMinLength {
		return
	}
	key := fmt.Sprintf("step_%d_observation", step)
	for _, o := range a.observations {
		if o.Key == key {
			return
		}
	}
	if len(runes) > observationMaxLength {
		runes = runes[:observationMaxLength]
	}
	a.observations = append(a.observations, domain.Observation{Key: key, Value: string(runes)})
}

func (a *Agent) mentorPrompt(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Experiment: %s\n", c.ExperimentName)
	fmt.Fprintf(&b, "Progress: step %d of %d (%.0f%%)\n", c.Step, c.TotalSteps, c.Progress()*100)
	b.WriteString("\nRecent conversation:\n")
	for _, msg := range c.Excerpt {
		fmt.Fprintf(&b, "%s: %s\n", msg.Sender, msg.Content)
	}
	b.WriteString(`
Provide a brief mentor observation or hint (max 100 words). Focus on:
1. Is understanding progressing well?
2. Are there misconceptions?
3. What should the next guiding question be?

Mentor's observation:`)
	return b.String()
}

func (a *Agent) evaluatorPrompt(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Provide a brief, encouraging evaluation of this lab session on %s.\n", c.ExperimentName)
	if c.StudentName != "" {
		fmt.Fprintf(&b, "Student: %s\n", c.StudentName)
	}
	if c.Summary != "" {
		fmt.Fprintf(&b, "Session summary: %s\n", c.Summary)
	}
	b.WriteString("Include what went well, areas for improvement, and next steps. Keep it concise (100 words).")
	return b.String()
}
