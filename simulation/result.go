package simulation

import (
	"fmt"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
)

// InjectionResult describes what actually reached the column head.
type InjectionResult struct {
	// SplitFlow is the vent flow in mL/min implied by the split ratio,
	// zero for splitless and on-column injections.
	SplitFlow float64 `json:"split_flow_ml_min"`

	// Efficiency is the compound-independent inlet transfer efficiency
	// in (0, 1], a function of injection volume and inlet temperature.
	Efficiency float64 `json:"efficiency"`

	// Discrimination maps compound name to the mass-discrimination factor
	// applied on top of Efficiency. In split mode the factor includes the
	// split-ratio division, so values can be far below one.
	Discrimination map[string]float64 `json:"discrimination"`

	// Amounts maps compound name to the mass in nanograms delivered to
	// the column.
	Amounts map[string]float64 `json:"amounts_ng"`
}

// SeparationResult describes the chromatogram geometry: where peaks elute
// and how sharp they are.
type SeparationResult struct {
	// RetentionTimes maps compound name to elution time in minutes.
	RetentionTimes map[string]float64 `json:"retention_times_min"`

	// PeakWidths maps compound name to base peak width in minutes.
	PeakWidths map[string]float64 `json:"peak_widths_min"`

	// Plates is the theoretical plate count of the column.
	Plates float64 `json:"theoretical_plates"`

	// Resolution maps "earlier/later" adjacent-pair keys (elution order)
	// to chromatographic resolution.
	Resolution map[string]float64 `json:"resolution"`

	// ClampedCompounds lists, sorted by name, compounds whose computed
	// retention exceeded the usable run window and was clamped to it.
	ClampedCompounds []string `json:"clamped_compounds,omitempty"`
}

// DetectionResult describes detector response per compound.
type DetectionResult struct {
	Family catalog.DetectorFamily `json:"detector"`

	// NoiseFloor is the detector noise level the signal-to-noise ratios
	// are referenced against, in area units.
	NoiseFloor float64 `json:"noise_floor"`

	// ResponseFactors maps compound name to the catalog response factor
	// used for this detector family. Zero means the detector is blind to
	// the compound class, a valid outcome rather than an error.
	ResponseFactors map[string]float64 `json:"response_factors"`

	// Areas maps compound name to integrated peak area. A zero-response
	// compound reports a zero area.
	Areas map[string]float64 `json:"areas"`

	// Heights maps compound name to apex height from the Gaussian
	// area/width relation; sharper peaks stand taller at equal area.
	Heights map[string]float64 `json:"heights"`

	// SignalToNoise maps compound name to area divided by NoiseFloor.
	SignalToNoise map[string]float64 `json:"signal_to_noise"`
}

// Performance aggregates separation and detection quality into one score.
type Performance struct {
	// AvgResolution is the mean over adjacent-pair resolutions, or the
	// neutral value 1.5 when fewer than two compounds elute.
	AvgResolution float64 `json:"avg_resolution"`

	// AvgSignalToNoise is the mean signal-to-noise over all compounds.
	AvgSignalToNoise float64 `json:"avg_signal_to_noise"`

	// Score is the method score on [0, 100].
	Score float64 `json:"score"`

	// TotalTime is the oven program runtime in minutes.
	TotalTime float64 `json:"total_time_min"`
}

// Result is the complete outcome of one simulated run. It is a pure function
// of the request: no timestamps, IDs, or host state, so identical requests
// marshal to identical bytes.
type Result struct {
	Method    string   `json:"method"`
	Version   string   `json:"version"`
	Compounds []string `json:"compounds"`

	Injection  *InjectionResult  `json:"injection"`
	Separation *SeparationResult `json:"separation"`
	Detection  *DetectionResult  `json:"detection"`

	// Backflush is the advised backflush start time in minutes, nil when
	// the method's matrix does not qualify for backflushing.
	Backflush *float64 `json:"backflush_start_min,omitempty"`

	Performance Performance `json:"performance"`

	// Recommendations are actionable method changes, in rule order.
	Recommendations []string `json:"recommendations,omitempty"`

	// Warnings flag results that are valid but suspect, clamped
	// retentions first (sorted by compound), then rule warnings.
	Warnings []string `json:"warnings,omitempty"`
}

// Summary renders a one-line digest suitable for logs.
func (r *Result) Summary() string {
	backflush := "off"
	if r.Backflush != nil {
		backflush = fmt.Sprintf("%.2f min", *r.Backflush)
	}
	return fmt.Sprintf("%s v%s: %d compounds, score %.1f (res %.2f, s/n %.1f), backflush %s, %d recommendations, %d warnings",
		r.Method, r.Version, len(r.Compounds), r.Performance.Score,
		r.Performance.AvgResolution, r.Performance.AvgSignalToNoise,
		backflush, len(r.Recommendations), len(r.Warnings))
}

// pairKey builds the resolution map key for an adjacent peak pair in
// elution order.
func pairKey(earlier, later string) string {
	return earlier + "/" + later
}
