// Package domain contains core domain types for the AI lab partner application.
package domain

import "fmt"

// Subject is the science category an experiment belongs to.
type Subject string

const (
	SubjectChemistry Subject = "chemistry"
	SubjectPhysics   Subject = "physics"
	SubjectBiology   Subject = "biology"
)

// Valid reports whether s is one of the known subjects.
func (s Subject) Valid() bool {
	switch s {
	case SubjectChemistry, SubjectPhysics, SubjectBiology:
		return true
	}
	return false
}

// Level is the difficulty of an experiment.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// ExperimentStep is a single ordered step of a scenario.
type ExperimentStep struct {
	Number              int      `json:"step_number" yaml:"number"`
	Title               string   `json:"title" yaml:"title"`
	Description         string   `json:"description" yaml:"description"`
	Instructions        string   `json:"instructions" yaml:"instructions"`
	ExpectedObservation string   `json:"expected_observation" yaml:"expected_observation"`
	LearningObjectives  []string `json:"learning_objectives" yaml:"learning_objectives"`
	Tips                []string `json:"tips" yaml:"tips"`
}

// ExperimentScenario is an immutable lab experiment definition.
type ExperimentScenario struct {
	ID                 string            `json:"experiment_id" yaml:"id"`
	Title              string            `json:"title" yaml:"title"`
	Description        string            `json:"description" yaml:"description"`
	Subject            Subject           `json:"subject" yaml:"subject"`
	Level              Level             `json:"level" yaml:"level"`
	DurationMinutes    int               `json:"duration_minutes" yaml:"duration_minutes"`
	LearningObjectives []string          `json:"learning_objectives" yaml:"learning_objectives"`
	Materials          []string          `json:"materials" yaml:"materials"`
	Steps              []ExperimentStep  `json:"steps" yaml:"steps"`
	SafetyNotes        []string          `json:"safety_notes" yaml:"safety_notes"`
	Computations       map[string]string `json:"computations" yaml:"computations"`
}

// TotalSteps returns the number of steps in the scenario.
func (s *ExperimentScenario) TotalSteps() int {
	return len(s.Steps)
}

// Step returns the step with the given 1-based ordinal.
func (s *ExperimentScenario) Step(number int) (ExperimentStep, bool) {
	if number < 1 || number > len(s.Steps) {
		return ExperimentStep{}, false
	}
	return s.Steps[number-1], true
}

// FirstStep returns the opening step. Scenarios always have at least one step.
func (s *ExperimentScenario) FirstStep() ExperimentStep {
	return s.Steps[0]
}

// Validate checks the structural invariants of a scenario.
func (s *ExperimentScenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scenario id cannot be empty")
	}
	if s.Title == "" {
		return fmt.Errorf("scenario %s: title cannot be empty", s.ID)
	}
	if !s.Subject.Valid() {
		return fmt.Errorf("scenario %s: unknown subject %q", s.ID, s.Subject)
	}
	if !s.Level.Valid() {
		return fmt.Errorf("scenario %s: unknown level %q", s.ID, s.Level)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s: at least one step is required", s.ID)
	}
	for i, step := range s.Steps {
		if step.Number != i+1 {
			return fmt.Errorf("scenario %s: step %d has ordinal %d, want %d", s.ID, i, step.Number, i+1)
		}
	}
	return nil
}
