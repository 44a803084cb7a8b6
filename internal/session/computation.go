package session

import (
	"github.com/ashureev/ailab/internal/domain"
	"github.com/ashureev/ailab/internal/formula"
)

// finalComputation runs the demonstration formula of a scenario's last step.
type finalComputation func() (domain.ComputationResult, error)

// finalComputations maps scenario ids to the formula evaluated once when a
// session reaches its final step. Parameters are fixed demonstration values.
var finalComputations = map[string]finalComputation{
	"acid_base_titration": func() (domain.ComputationResult, error) {
		return formula.Titration(0.1, 20, 0.1)
	},
	"hookes_law": func() (domain.ComputationResult, error) {
		return formula.HookesLaw(300, 0.1)
	},
	"osmosis": func() (domain.ComputationResult, error) {
		return formula.Osmosis(0.1, 298, 0.01)
	},
}

// HasFinalComputation reports whether scenarioID has a final-step formula.
func HasFinalComputation(scenarioID string) bool {
	_, ok := finalComputations[scenarioID]
	return ok
}
