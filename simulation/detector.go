package simulation

import (
	"fmt"
	"math"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
)

// Detector response constants.
const (
	// Detector-temperature response term, 0.5 + T/500 capped at 1.2.
	tempResponseBase  = 0.5
	tempResponseSlope = 1.0 / 500.0
	tempResponseCap   = 1.2

	// FID flame chemistry peaks at a hydrogen/air ratio of 0.1. The
	// response falls off linearly with the ratio error and bottoms out at
	// half response; without declared flows a slightly detuned flame is
	// assumed.
	fidOptimalRatio  = 0.1
	fidRatioSlope    = 2.0
	fidMinGasFactor  = 0.5
	fidDefaultFactor = 0.85

	// Family-specific electronics references: response scales with the
	// setting over its reference, saturating.
	scdReferencePMT      = 800.0 // V
	ecdReferenceCurrent  = 5.0   // nA
	tcdReferenceFilament = 250.0 // °C
)

// detectorScale converts delivered nanograms times response factor into
// integrated area units per family.
var detectorScale = map[catalog.DetectorFamily]float64{
	catalog.FID: 50.0,
	catalog.SCD: 80.0,
	catalog.ECD: 120.0,
	catalog.TCD: 5.0,
}

// detectorNoise is the fixed noise floor per family in area units. ECD is the
// quietest, TCD by far the noisiest.
var detectorNoise = map[catalog.DetectorFamily]float64{
	catalog.FID: 2.0,
	catalog.SCD: 0.8,
	catalog.ECD: 0.1,
	catalog.TCD: 25.0,
}

// SimulateDetection models detector response: integrated area, apex height,
// and signal-to-noise per compound. Area is the delivered amount times the
// compound's family response factor, scaled by detector temperature and the
// family gas/electronics factor. A zero response factor flows through as zero
// area and zero signal-to-noise, never an error.
func SimulateDetection(det method.Detector, compounds []catalog.Compound, injection *InjectionResult, separation *SeparationResult) (*DetectionResult, error) {
	if len(compounds) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Detection", "Simulate", "require at least one compound")
	}
	if injection == nil || separation == nil {
		return nil, errors.WrapFatal(errors.ErrStageComputation, "Detection", "Simulate", "consume missing upstream stage output")
	}
	scale, ok := detectorScale[det.Family]
	if !ok {
		return nil, errors.WrapFatal(errors.ErrStageComputation, "Detection", "Simulate",
			fmt.Sprintf("look up detector family %q", det.Family))
	}
	noise := detectorNoise[det.Family]

	tempFactor := math.Min(tempResponseCap, tempResponseBase+tempResponseSlope*det.Temperature)
	gasFactor := detectorGasFactor(det)

	res := &DetectionResult{
		Family:          det.Family,
		NoiseFloor:      noise,
		ResponseFactors: make(map[string]float64, len(compounds)),
		Areas:           make(map[string]float64, len(compounds)),
		Heights:         make(map[string]float64, len(compounds)),
		SignalToNoise:   make(map[string]float64, len(compounds)),
	}
	for _, c := range compounds {
		amount, ok := injection.Amounts[c.Name]
		if !ok {
			return nil, errors.WrapFatal(errors.ErrStageComputation, "Detection", "Simulate",
				fmt.Sprintf("consume injected amount for %s", c.Name))
		}
		width, ok := separation.PeakWidths[c.Name]
		if !ok || width <= 0 {
			return nil, errors.WrapFatal(errors.ErrStageComputation, "Detection", "Simulate",
				fmt.Sprintf("consume peak width for %s", c.Name))
		}

		rf := c.ResponseFactor(det.Family)
		area := amount * rf * scale * tempFactor * gasFactor

		res.ResponseFactors[c.Name] = rf
		res.Areas[c.Name] = area
		res.Heights[c.Name] = peakHeight(area, width)
		res.SignalToNoise[c.Name] = area / noise
	}
	return res, nil
}

// detectorGasFactor evaluates the family-specific gas or electronics factor
// from the detector configuration, falling back to the reference setting when
// the knob is absent.
func detectorGasFactor(det method.Detector) float64 {
	switch det.Family {
	case catalog.FID:
		h2, air := det.GasFlows["H2"], det.GasFlows["Air"]
		if h2 <= 0 || air <= 0 {
			return fidDefaultFactor
		}
		return clamp(fidMinGasFactor, 1.0, 1.0-fidRatioSlope*math.Abs(h2/air-fidOptimalRatio))
	case catalog.SCD:
		pmt := scdReferencePMT
		if det.SCD != nil && det.SCD.PMTVoltage > 0 {
			pmt = det.SCD.PMTVoltage
		}
		return clamp(0.5, 1.5, pmt/scdReferencePMT)
	case catalog.ECD:
		current := 1.0
		if det.ECD != nil && det.ECD.StandingCurrent > 0 {
			current = det.ECD.StandingCurrent
		}
		return clamp(0.6, 1.2, 0.8+current/ecdReferenceCurrent)
	case catalog.TCD:
		filament := tcdReferenceFilament
		if det.TCD != nil && det.TCD.FilamentTemperature > 0 {
			filament = det.TCD.FilamentTemperature
		}
		return clamp(0.5, 1.5, filament/tcdReferenceFilament)
	default:
		return 1.0
	}
}

// peakHeight converts integrated area and base width into apex height via the
// Gaussian relation, σ = w/4 and h = A/(σ√2π).
func peakHeight(area, width float64) float64 {
	sigma := width / 4.0
	return area / (sigma * math.Sqrt(2.0*math.Pi))
}
