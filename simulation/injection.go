package simulation

import (
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
)

// Inlet model constants. The transfer model is deliberately coarse: a nominal
// efficiency corrected for sample volume and inlet temperature, and a linear
// molecular-weight discrimination with saturating bounds.
const (
	// baseEfficiency is the transfer efficiency of a nominal 1.0 µL
	// injection at reference inlet temperature.
	baseEfficiency = 0.95

	// volumePenalty is the fractional efficiency loss per µL above the
	// nominal 1.0 µL; large volumes flood the liner.
	volumePenalty   = 0.08
	minVolumeFactor = 0.70

	// Inlet temperature correction relative to a 150 °C reference,
	// saturating at both ends. Hotter inlets vaporize more completely.
	referenceInletTemp = 150.0
	tempFactorSlope    = 1.0 / 650.0
	minTempFactor      = 0.80
	maxTempFactor      = 1.05

	// Mass discrimination: transfer loss per g/mol above the reference
	// weight, bounded so no compound transfers better than 95% or worse
	// than 50% before the split vent takes its share.
	discriminationSlope   = 0.0015
	referenceWeight       = 100.0
	discriminationCeiling = 0.95
	discriminationFloor   = 0.50
)

// SimulateInjection models inlet transfer: how much of each compound survives
// vaporization and the split vent and reaches the column head. columnFlow is
// the column flow in mL/min, used only to report the implied vent flow.
//
// Amounts land in nanograms because catalog concentrations are mg/L, which
// is ng/µL against the µL injection volume.
func SimulateInjection(inj method.Injection, columnFlow float64, compounds []catalog.Compound) (*InjectionResult, error) {
	if len(compounds) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Injection", "Simulate", "require at least one compound")
	}
	// Validation upstream rules these out; a zero here would poison every
	// downstream stage, so fail fatal rather than divide.
	if inj.Volume <= 0 {
		return nil, errors.WrapFatal(errors.ErrStageComputation, "Injection", "Simulate", "apply non-positive injection volume")
	}
	if inj.Mode == method.Split && inj.SplitRatio <= 0 {
		return nil, errors.WrapFatal(errors.ErrStageComputation, "Injection", "Simulate", "apply non-positive split ratio")
	}

	res := &InjectionResult{
		SplitFlow:      inj.SplitFlow(columnFlow),
		Efficiency:     transferEfficiency(inj.Volume, inj.Temperature),
		Discrimination: make(map[string]float64, len(compounds)),
		Amounts:        make(map[string]float64, len(compounds)),
	}
	for _, c := range compounds {
		disc := discrimination(c.MolecularWeight)
		if inj.Mode == method.Split {
			disc /= inj.SplitRatio
		}
		res.Discrimination[c.Name] = disc
		res.Amounts[c.Name] = c.Concentration * inj.Volume * res.Efficiency * disc
	}
	return res, nil
}

// transferEfficiency scales the nominal efficiency down for large volumes and
// up for hot inlets. Both corrections saturate.
func transferEfficiency(volume, temperature float64) float64 {
	volumeFactor := clamp(minVolumeFactor, 1.0, 1.0-volumePenalty*(volume-1.0))
	tempFactor := clamp(minTempFactor, maxTempFactor,
		minTempFactor+tempFactorSlope*(temperature-referenceInletTemp))
	return baseEfficiency * volumeFactor * tempFactor
}

// discrimination returns the per-compound mass-discrimination factor before
// any split-ratio division. Heavier molecules transfer less completely.
func discrimination(molecularWeight float64) float64 {
	return clamp(discriminationFloor, discriminationCeiling,
		1.0-discriminationSlope*(molecularWeight-referenceWeight))
}

// clamp bounds v to [lo, hi].
func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
