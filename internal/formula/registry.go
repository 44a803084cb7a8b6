package formula

import (
	"fmt"
	"sort"

	"github.com/ashureev/ailab/internal/domain"
)

// Info describes a formula and the parameters it expects.
type Info struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Expression string   `json:"expression"`
	Unit       string   `json:"unit"`
	Params     []string `json:"params"`
	evaluate   func(p []float64) (domain.ComputationResult, error)
}

var registry = map[string]Info{
	IDTitration: {
		ID: IDTitration, Name: "Titration equivalence point", Expression: "acid_concentration × acid_volume / base_concentration", Unit: "mL",
		Params:   []string{"acid_concentration", "acid_volume", "base_concentration"},
		evaluate: func(p []float64) (domain.ComputationResult, error) { return Titration(p[0], p[1], p[2]) },
	},
	IDHookesLaw: {
		ID: IDHookesLaw, Name: "Hooke's law maximum force", Expression: "spring_constant × max_displacement", Unit: "N",
		Params:   []string{"spring_constant", "max_displacement"},
		evaluate: func(p []float64) (domain.ComputationResult, error) { return HookesLaw(p[0], p[1]) },
	},
	IDOsmosis: {
		ID: IDOsmosis, Name: "Osmotic pressure", Expression: "i × concentration × R × temperature", Unit: "atm",
		Params:   []string{"concentration", "temperature", "volume"},
		evaluate: func(p []float64) (domain.ComputationResult, error) { return Osmosis(p[0], p[1], p[2]) },
	},
	IDPH: {
		ID: IDPH, Name: "pH from hydrogen ion concentration", Expression: "-log10(h_concentration)", Unit: "pH",
		Params:   []string{"h_concentration"},
		evaluate: func(p []float64) (domain.ComputationResult, error) { return PH(p[0]) },
	},
	IDMolarity: {
		ID: IDMolarity, Name: "Molarity", Expression: "moles / volume_liters", Unit: "M",
		Params:   []string{"moles", "volume_liters"},
		evaluate: func(p []float64) (domain.ComputationResult, error) { return Molarity(p[0], p[1]) },
	},
	IDSpringEnergy: {
		ID: IDSpringEnergy, Name: "Elastic potential energy", Expression: "0.5 × spring_constant × displacement²", Unit: "J",
		Params:   []string{"spring_constant", "displacement"},
		evaluate: func(p []float64) (domain.ComputationResult, error) { return SpringEnergy(p[0], p[1]) },
	},
}

// Known reports whether id names a registered formula.
func Known(id string) bool {
	_, ok := registry[id]
	return ok
}

// Describe returns the registered formula info.
func Describe(id string) (Info, bool) {
	info, ok := registry[id]
	return info, ok
}

// List returns all formulas sorted by id.
func List() []Info {
	out := make([]Info, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Evaluate runs the formula id with named parameters. Every declared
// parameter must be present.
func Evaluate(id string, params map[string]float64) (domain.ComputationResult, error) {
	info, ok := registry[id]
	if !ok {
		return domain.ComputationResult{}, fmt.Errorf("%w: unknown formula %q", ErrInvalidInput, id)
	}
	args := make([]float64, len(info.Params))
	for i, name := range info.Params {
		v, ok := params[name]
		if !ok {
			return domain.ComputationResult{}, fmt.Errorf("%w: missing parameter %q", ErrInvalidInput, name)
		}
		args[i] = v
	}
	return info.evaluate(args)
}
