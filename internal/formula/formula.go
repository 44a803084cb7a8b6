// Package formula implements the closed-form lab computations.
//
// Every function is pure: identical inputs always yield identical numeric
// results. Inputs must be finite; non-positive denominators are replaced by
// minDenominator so that a final step never fails on a division by zero.
package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/ashureev/ailab/internal/domain"
)

// ErrInvalidInput is returned when a parameter is NaN or infinite.
var ErrInvalidInput = errors.New("invalid formula input")

const (
	// GasConstant is R in L·atm/(mol·K).
	GasConstant = 0.08206
	// VantHoffNonElectrolyte is the van't Hoff factor for a non-electrolyte solute.
	VantHoffNonElectrolyte = 1.0
	// Gravity is standard gravity in m/s².
	Gravity = 9.8

	minDenominator = 1e-9
	minHydrogenIon = 1e-14
)

// Formula identifiers referenced by the scenario table.
const (
	IDTitration    = "titration_equivalence"
	IDHookesLaw    = "hooke_max_force"
	IDOsmosis      = "osmotic_pressure"
	IDPH           = "ph"
	IDMolarity     = "molarity"
	IDSpringEnergy = "spring_energy"
)

func checkFinite(names []string, values ...float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidInput, names[i], v)
		}
	}
	return nil
}

func positive(v float64) float64 {
	if v <= 0 {
		return minDenominator
	}
	return v
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func result(id, query, text string, value float64, svg string) domain.ComputationResult {
	return domain.ComputationResult{
		Formula:       id,
		Query:         query,
		Result:        text,
		NumericResult: &value,
		GraphSVG:      encodeSVG(svg),
	}
}

// Titration computes the equivalence point volume (mL) of an acid-base titration.
func Titration(acidConc, acidVol, baseConc float64) (domain.ComputationResult, error) {
	if err := checkFinite([]string{"acid_concentration", "acid_volume", "base_concentration"}, acidConc, acidVol, baseConc); err != nil {
		return domain.ComputationResult{}, err
	}
	base := positive(baseConc)
	equiv := acidConc * acidVol / base

	query := fmt.Sprintf("Plot[pH[x] = 14 + Log10[(x*%s - %s*%s)/(%s + x)], {x, 0, %s}, "+
		`AxesLabel -> {"Volume of Base (mL)", "pH"}, PlotLabel -> "Titration Curve"]`,
		num(baseConc), num(acidConc), num(acidVol), num(acidVol), num(equiv*1.5))

	return result(IDTitration, query,
		fmt.Sprintf("pH curve computed | Equivalence point: %.2f mL", equiv),
		equiv, titrationSVG(acidConc, acidVol, base, equiv)), nil
}

// HookesLaw computes the maximum spring force (N) at the given displacement.
func HookesLaw(springConstant, maxDisplacement float64) (domain.ComputationResult, error) {
	if err := checkFinite([]string{"spring_constant", "max_displacement"}, springConstant, maxDisplacement); err != nil {
		return domain.ComputationResult{}, err
	}
	force := springConstant * maxDisplacement

	query := fmt.Sprintf("Plot[%s * x, {x, 0, %s}, AxesLabel -> {'Displacement (m)', 'Force (N)'}]",
		num(springConstant), num(maxDisplacement))

	return result(IDHookesLaw, query,
		fmt.Sprintf("Force-displacement plotted | Max force: %.2f N at %.2f m", force, maxDisplacement),
		force, hookeSVG(springConstant, maxDisplacement)), nil
}

// Osmosis computes osmotic pressure π = iMRT (atm) for a non-electrolyte.
// The volume is reported in the diagram only.
func Osmosis(concentration, temperature, volume float64) (domain.ComputationResult, error) {
	if err := checkFinite([]string{"concentration", "temperature", "volume"}, concentration, temperature, volume); err != nil {
		return domain.ComputationResult{}, err
	}
	pressure := VantHoffNonElectrolyte * concentration * GasConstant * temperature

	query := fmt.Sprintf("π = iMRT = %.1f × %s × %s × %s = %.2f atm",
		VantHoffNonElectrolyte, num(concentration), num(GasConstant), num(temperature), pressure)

	return result(IDOsmosis, query,
		fmt.Sprintf("Osmotic pressure: %.2f atm | Water flow direction: High → Low concentration", pressure),
		pressure, osmosisSVG(concentration, temperature, pressure)), nil
}

// PH computes pH = -log10([H+]).
func PH(hConcentration float64) (domain.ComputationResult, error) {
	if err := checkFinite([]string{"h_concentration"}, hConcentration); err != nil {
		return domain.ComputationResult{}, err
	}
	if hConcentration <= 0 {
		hConcentration = minHydrogenIon
	}
	ph := -math.Log10(hConcentration)
	poh := 14 - ph

	nature := "Neutral"
	switch {
	case ph < 7:
		nature = "Acidic"
	case ph > 7:
		nature = "Basic"
	}

	query := fmt.Sprintf("pH = -log₁₀([H⁺]) = -log₁₀(%.2e) = %.2f", hConcentration, ph)
	return result(IDPH, query,
		fmt.Sprintf("pH = %.2f | pOH = %.2f | %s", ph, poh, nature),
		ph, phScaleSVG(ph, hConcentration)), nil
}

// Molarity computes M = n/V.
func Molarity(moles, volumeLiters float64) (domain.ComputationResult, error) {
	if err := checkFinite([]string{"moles", "volume_liters"}, moles, volumeLiters); err != nil {
		return domain.ComputationResult{}, err
	}
	volume := positive(volumeLiters)
	m := moles / volume

	query := fmt.Sprintf("M = n/V = %s mol / %s L = %.3f M", num(moles), num(volume), m)
	return result(IDMolarity, query,
		fmt.Sprintf("Molarity = %.3f M (%s moles in %s L)", m, num(moles), num(volume)),
		m, concentrationSVG(m, moles, volume)), nil
}

// SpringEnergy computes elastic potential energy E = ½kx².
func SpringEnergy(springConstant, displacement float64) (domain.ComputationResult, error) {
	if err := checkFinite([]string{"spring_constant", "displacement"}, springConstant, displacement); err != nil {
		return domain.ComputationResult{}, err
	}
	energy := 0.5 * springConstant * displacement * displacement
	force := springConstant * displacement

	query := fmt.Sprintf("E = ½kx² = ½ × %s × %s² = %.3f J", num(springConstant), num(displacement), energy)
	return result(IDSpringEnergy, query,
		fmt.Sprintf("Elastic PE = %.3f J | Force = %.2f N at %s m", energy, force, num(displacement)),
		energy, energySVG(springConstant, displacement, energy)), nil
}
