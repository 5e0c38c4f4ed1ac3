package simulation

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
)

// Retention and efficiency model constants. Retention follows the gap
// between boiling point and the program's average temperature with
// exponential sensitivity, corrected for column geometry and carrier flow
// relative to a 30 m × 2.0 mL/min × 0.25 µm reference column.
const (
	deadTime               = 2.0   // min, unretained elution
	retentionScale         = 8.0   // min, envelope when BP equals avg oven temp
	temperatureSensitivity = 150.0 // °C per e-fold of retention

	referenceLength = 30.0 // m
	referenceFlow   = 2.0  // mL/min
	referenceFilm   = 0.25 // µm
	filmSensitivity = 0.30 // retention gain per µm of film above reference

	// platesScale over the bore in mm gives plates per meter; a 0.32 mm
	// column lands at the textbook ~2500 plates/m.
	platesScale = 800.0

	minRetention  = 1.0 // min, nothing elutes before the dead volume clears
	runtimeMargin = 2.0 // min held back from the run end for re-equilibration
)

// carrierRetentionFactor scales retention by carrier gas relative to helium:
// hydrogen sweeps faster, nitrogen slower at the same nominal flow.
var carrierRetentionFactor = map[string]float64{
	"Helium":   1.0,
	"Hydrogen": 0.85,
	"Nitrogen": 1.25,
}

// SimulateSeparation models the chromatogram: per-compound retention time and
// peak width, theoretical plates, and resolution for every adjacent pair in
// elution order. Retention beyond the usable run window is clamped to
// runtime − 2.0 and the compound recorded in ClampedCompounds.
//
// Per-compound work fans out over an errgroup; only the pairwise resolution
// pass needs every retention time in hand.
func SimulateSeparation(ctx context.Context, col method.Column, oven method.OvenProgram, compounds []catalog.Compound) (*SeparationResult, error) {
	if len(compounds) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Separation", "Simulate", "require at least one compound")
	}
	if col.Length <= 0 || col.InnerDiameter <= 0 || col.FlowRate <= 0 {
		return nil, errors.WrapFatal(errors.ErrStageComputation, "Separation", "Simulate", "apply non-positive column geometry")
	}
	gasFactor, ok := carrierRetentionFactor[col.CarrierGas]
	if !ok {
		return nil, errors.WrapFatal(errors.ErrStageComputation, "Separation", "Simulate",
			fmt.Sprintf("look up carrier gas %q", col.CarrierGas))
	}
	runtime := oven.TotalRuntime()
	maxRetention := runtime - runtimeMargin
	if maxRetention < minRetention {
		return nil, errors.WrapFatal(errors.ErrStageComputation, "Separation", "Simulate",
			fmt.Sprintf("fit elution window into %.1f min runtime", runtime))
	}

	avgTemp := oven.AverageTemperature()
	plates := platesScale / col.InnerDiameter * col.Length
	sqrtPlates := math.Sqrt(plates)

	type peak struct {
		rt      float64
		width   float64
		clamped bool
	}
	peaks := make([]peak, len(compounds))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range compounds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return errors.WrapTransient(err, "Separation", "Simulate", "compute retention")
			}
			rt := retentionTime(c.BoilingPoint, avgTemp, col, gasFactor)
			clamped := rt > maxRetention
			rt = clamp(minRetention, maxRetention, rt)
			peaks[i] = peak{rt: rt, width: peakWidth(rt, sqrtPlates), clamped: clamped}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &SeparationResult{
		RetentionTimes: make(map[string]float64, len(compounds)),
		PeakWidths:     make(map[string]float64, len(compounds)),
		Plates:         plates,
		Resolution:     make(map[string]float64),
	}
	for i, c := range compounds {
		res.RetentionTimes[c.Name] = peaks[i].rt
		res.PeakWidths[c.Name] = peaks[i].width
		if peaks[i].clamped {
			res.ClampedCompounds = append(res.ClampedCompounds, c.Name)
		}
	}
	sort.Strings(res.ClampedCompounds)

	order := elutionOrder(res.RetentionTimes)
	for i := 1; i < len(order); i++ {
		earlier, later := order[i-1], order[i]
		widths := res.PeakWidths[earlier] + res.PeakWidths[later]
		if widths <= 0 {
			return nil, errors.WrapFatal(errors.ErrStageComputation, "Separation", "Simulate",
				fmt.Sprintf("resolve pair %s with zero peak widths", pairKey(earlier, later)))
		}
		res.Resolution[pairKey(earlier, later)] =
			2.0 * (res.RetentionTimes[later] - res.RetentionTimes[earlier]) / widths
	}
	return res, nil
}

// retentionTime estimates elution in minutes from the boiling-point gap and
// the column correction factors. Unclamped.
func retentionTime(boilingPoint, avgOvenTemp float64, col method.Column, gasFactor float64) float64 {
	base := deadTime + retentionScale*math.Exp((boilingPoint-avgOvenTemp)/temperatureSensitivity)
	return base *
		(col.Length / referenceLength) *
		(referenceFlow / col.FlowRate) *
		(1.0 + filmSensitivity*(col.FilmThickness-referenceFilm)) *
		gasFactor
}

// peakWidth is the base width from the plate model, w = 4t/√N. Later peaks
// are broader.
func peakWidth(rt, sqrtPlates float64) float64 {
	return 4.0 * rt / sqrtPlates
}

// elutionOrder returns compound names sorted by retention time, tie-broken by
// name so numerically identical peaks still order deterministically.
func elutionOrder(retentionTimes map[string]float64) []string {
	names := make([]string, 0, len(retentionTimes))
	for name := range retentionTimes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if retentionTimes[names[i]] != retentionTimes[names[j]] {
			return retentionTimes[names[i]] < retentionTimes[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
