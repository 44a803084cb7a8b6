// Package catalog provides the fixed registry of lab experiment scenarios.
package catalog

import (
	_ "embed"
	"fmt"

	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/formula"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var builtinScenarios []byte

// Catalog is a read-only scenario registry. It is safe for concurrent use
// because nothing mutates it after construction.
type Catalog struct {
	order []string
	byID  map[string]*domain.ExperimentScenario
}

// Default loads the embedded scenario table.
func Default() (*Catalog, error) {
	return Load(builtinScenarios)
}

// Load parses a YAML scenario table and validates every entry.
func Load(data []byte) (*Catalog, error) {
	var scenarios []domain.ExperimentScenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	return New(scenarios)
}

// New builds a catalog from already-decoded scenarios.
func New(scenarios []domain.ExperimentScenario) (*Catalog, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("catalog requires at least one scenario")
	}

	c := &Catalog{
		order: make([]string, 0, len(scenarios)),
		byID:  make(map[string]*domain.ExperimentScenario, len(scenarios)),
	}
	for i := range scenarios {
		s := scenarios[i]
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid scenario: %w", err)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		for name, id := range s.Computations {
			if !formula.Known(id) {
				return nil, fmt.Errorf("scenario %s: computation %q references unknown formula %q", s.ID, name, id)
			}
		}
		c.order = append(c.order, s.ID)
		c.byID[s.ID] = &s
	}
	return c, nil
}

// Get returns the scenario registered under id.
func (c *Catalog) Get(id string) (domain.ExperimentScenario, bool) {
	s, ok := c.byID[id]
	if !ok {
		return domain.ExperimentScenario{}, false
	}
	return *s, true
}

// List returns all scenarios in table order.
func (c *Catalog) List() []domain.ExperimentScenario {
	out := make([]domain.ExperimentScenario, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.byID[id])
	}
	return out
}

// Len returns the number of scenarios.
func (c *Catalog) Len() int {
	return len(c.order)
}
