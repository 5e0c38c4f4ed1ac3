package simulation

import (
	"sort"
	"strings"
)

// Backflush timing constants: start two minutes after the last target peak,
// but never in the final fifth of the run; a start that late is pulled back
// to three quarters of the runtime.
const (
	backflushLag           = 2.0
	backflushLateFraction  = 0.8
	backflushClampFraction = 0.75
)

// defaultBackflushMatrices are the sample matrices whose heavy tail justifies
// reversing carrier flow after the targets elute. Matching is by normalized
// name, not substring.
var defaultBackflushMatrices = []string{
	"petroleum",
	"heavy_crude",
	"crude_oil",
	"diesel",
	"vacuum_gas_oil",
	"natural_gas_condensate",
}

// BackflushAdvisor decides whether a method's sample matrix warrants a
// backflush and, when it does, at what time to start it. Eligibility is an
// enumerable matrix table so operators can audit and extend the policy.
type BackflushAdvisor struct {
	matrices map[string]bool
}

// NewBackflushAdvisor builds an advisor for the given eligible matrices,
// falling back to the default petroleum-class table when none are given.
func NewBackflushAdvisor(matrices ...string) *BackflushAdvisor {
	if len(matrices) == 0 {
		matrices = defaultBackflushMatrices
	}
	a := &BackflushAdvisor{matrices: make(map[string]bool, len(matrices))}
	for _, m := range matrices {
		a.matrices[normalizeMatrix(m)] = true
	}
	return a
}

// Eligible reports whether the declared sample matrix is in the backflush
// table. Comparison is case- and separator-insensitive.
func (a *BackflushAdvisor) Eligible(matrix string) bool {
	return a.matrices[normalizeMatrix(matrix)]
}

// Matrices returns the eligible matrix names, normalized and sorted.
func (a *BackflushAdvisor) Matrices() []string {
	names := make([]string, 0, len(a.matrices))
	for m := range a.matrices {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// Advise returns the backflush start time in minutes and whether backflushing
// applies. It returns false for ineligible matrices and when no peaks eluted,
// so callers can encode absence as a nil optional.
func (a *BackflushAdvisor) Advise(matrix string, runtime float64, sep *SeparationResult) (float64, bool) {
	if !a.Eligible(matrix) {
		return 0, false
	}
	if sep == nil || len(sep.RetentionTimes) == 0 {
		return 0, false
	}
	last := 0.0
	for _, rt := range sep.RetentionTimes {
		if rt > last {
			last = rt
		}
	}
	start := last + backflushLag
	if start > backflushLateFraction*runtime {
		start = backflushClampFraction * runtime
	}
	return start, true
}

// normalizeMatrix folds case and separators so "Heavy Crude", "heavy-crude"
// and "HEAVY_CRUDE" all address the same table entry.
func normalizeMatrix(matrix string) string {
	m := strings.ToLower(strings.TrimSpace(matrix))
	m = strings.ReplaceAll(m, " ", "_")
	m = strings.ReplaceAll(m, "-", "_")
	return m
}
