package simulation

import "math"

// targetResolution is baseline-adequate separation: the score scales average
// resolution against it, and it stands in for the average when fewer than two
// peaks make pairwise resolution meaningful.
const targetResolution = 1.5

// ScorePerformance folds separation and detection quality into the method
// score, clamp(0, 100, 50·(avgRes/1.5) + 10·log10(avgSNR)).
func ScorePerformance(runtime float64, sep *SeparationResult, det *DetectionResult) Performance {
	perf := Performance{
		AvgResolution: targetResolution,
		TotalTime:     runtime,
	}
	if sep != nil && len(sep.Resolution) > 0 {
		sum := 0.0
		for _, r := range sep.Resolution {
			sum += r
		}
		perf.AvgResolution = sum / float64(len(sep.Resolution))
	}
	if det != nil && len(det.SignalToNoise) > 0 {
		sum := 0.0
		for _, snr := range det.SignalToNoise {
			sum += snr
		}
		perf.AvgSignalToNoise = sum / float64(len(det.SignalToNoise))
	}
	perf.Score = efficiencyScore(perf.AvgResolution, perf.AvgSignalToNoise)
	return perf
}

// efficiencyScore maps the two averages onto [0, 100]. A non-positive average
// signal contributes nothing instead of -Inf; a quiet-but-resolved method
// still scores on resolution alone.
func efficiencyScore(avgResolution, avgSNR float64) float64 {
	score := 50.0 * (avgResolution / targetResolution)
	if avgSNR > 0 {
		score += 10.0 * math.Log10(avgSNR)
	}
	return clamp(0, 100, score)
}
