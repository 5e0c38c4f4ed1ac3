package simulation

import (
	"fmt"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
)

// Rule thresholds.
const (
	minEfficiency       = 0.70
	minSignalToNoise    = 10.0
	maxRoutineRuntime   = 30.0 // min
	maxDiscriminationSpread = 0.20 // relative spread across compounds
)

// ruleInput gathers everything the recommendation rules may inspect. Nil
// stage outputs simply keep the dependent rules from firing.
type ruleInput struct {
	runtime    float64
	injection  *InjectionResult
	separation *SeparationResult
	detection  *DetectionResult
}

type ruleKind int

const (
	kindRecommendation ruleKind = iota
	kindWarning
)

// rule is one predicate → message pair. fire returns the rendered message and
// whether the rule applies to this input.
type rule struct {
	name string
	kind ruleKind
	fire func(in ruleInput) (string, bool)
}

// rules evaluate in this fixed sequence; output ordering follows it, so
// identical inputs always render identical recommendation lists.
var rules = []rule{
	{
		name: "low-injection-efficiency",
		kind: kindRecommendation,
		fire: func(in ruleInput) (string, bool) {
			if in.injection == nil || in.injection.Efficiency >= minEfficiency {
				return "", false
			}
			return fmt.Sprintf("injection efficiency %.0f%% below %.0f%%: reduce injection volume or raise inlet temperature",
				100*in.injection.Efficiency, 100*minEfficiency), true
		},
	},
	{
		name: "poor-resolution",
		kind: kindRecommendation,
		fire: func(in ruleInput) (string, bool) {
			if in.separation == nil {
				return "", false
			}
			pair, res, ok := minEntry(in.separation.Resolution)
			if !ok || res >= targetResolution {
				return "", false
			}
			return fmt.Sprintf("resolution %.2f for pair %s below %.1f: slow the ramp rate or move to a longer column",
				res, pair, targetResolution), true
		},
	},
	{
		name: "weak-signal",
		kind: kindRecommendation,
		fire: func(in ruleInput) (string, bool) {
			if in.detection == nil {
				return "", false
			}
			name, snr, ok := minEntry(in.detection.SignalToNoise)
			if !ok || snr >= minSignalToNoise {
				return "", false
			}
			return fmt.Sprintf("signal-to-noise %.1f for %s below %.0f: review detector gas flows and temperature",
				snr, name, minSignalToNoise), true
		},
	},
	{
		name: "long-runtime",
		kind: kindWarning,
		fire: func(in ruleInput) (string, bool) {
			if in.runtime <= maxRoutineRuntime {
				return "", false
			}
			return fmt.Sprintf("runtime %.1f min exceeds %.0f min: consider a faster ramp or backflushing the heavy tail",
				in.runtime, maxRoutineRuntime), true
		},
	},
	{
		name: "discrimination-spread",
		kind: kindWarning,
		fire: func(in ruleInput) (string, bool) {
			if in.injection == nil {
				return "", false
			}
			spread, ok := relativeSpread(in.injection.Discrimination)
			if !ok || spread <= maxDiscriminationSpread {
				return "", false
			}
			return fmt.Sprintf("mass discrimination spread %.0f%% across compounds exceeds %.0f%%: heavier analytes under-report; consider splitless or on-column injection",
				100*spread, 100*maxDiscriminationSpread), true
		},
	},
}

// Recommend evaluates the rule sequence against the resolved method and stage
// outputs. Recommendations are actionable method changes; warnings flag valid
// but suspect results. Both preserve rule order.
func Recommend(tpl *method.Template, injection *InjectionResult, separation *SeparationResult, detection *DetectionResult) (recommendations, warnings []string) {
	in := ruleInput{
		injection:  injection,
		separation: separation,
		detection:  detection,
	}
	if tpl != nil {
		in.runtime = tpl.Oven.TotalRuntime()
	}
	for _, r := range rules {
		msg, ok := r.fire(in)
		if !ok {
			continue
		}
		switch r.kind {
		case kindRecommendation:
			recommendations = append(recommendations, msg)
		case kindWarning:
			warnings = append(warnings, msg)
		}
	}
	return recommendations, warnings
}

// minEntry returns the smallest value in m with its key, tie-broken by key so
// map iteration order cannot leak into messages. ok is false for an empty map.
func minEntry(m map[string]float64) (key string, val float64, ok bool) {
	for k, v := range m {
		if !ok || v < val || (v == val && k < key) {
			key, val, ok = k, v, true
		}
	}
	return key, val, ok
}

// relativeSpread is 1 − min/max over the map values, which cancels any common
// factor such as the split-ratio division, so the same compound mix reports
// the same spread in split and splitless mode.
func relativeSpread(m map[string]float64) (float64, bool) {
	var minV, maxV float64
	first := true
	for _, v := range m {
		if first {
			minV, maxV = v, v
			first = false
			continue
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if first || maxV <= 0 {
		return 0, false
	}
	return 1 - minV/maxV, true
}
