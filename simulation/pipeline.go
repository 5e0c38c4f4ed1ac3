package simulation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
)

// Simulation outcome labels for metrics.
const (
	statusOK      = "ok"
	statusInvalid = "invalid"
	statusFailed  = "failed"
)

// Pipeline drives a complete GC analysis: template resolution, the five
// simulation stages, and result assembly. A Pipeline holds only read-only
// collaborators, so a single value serves concurrent Run calls without
// locking.
type Pipeline struct {
	catalog   *catalog.Catalog
	library   *method.Library
	backflush *BackflushAdvisor
	metrics   *metric.Metrics
	observer  func(State)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records simulation outcomes, per-stage timings and score
// distributions into the given collector set.
func WithMetrics(m *metric.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithStageObserver registers a callback invoked on every state transition,
// terminal states included. Progress surfaces and tests hook in here; the
// callback runs on the Run goroutine and must be fast.
func WithStageObserver(fn func(State)) Option {
	return func(p *Pipeline) { p.observer = fn }
}

// WithBackflushMatrices replaces the default backflush matrix policy table.
func WithBackflushMatrices(matrices ...string) Option {
	return func(p *Pipeline) { p.backflush = NewBackflushAdvisor(matrices...) }
}

// NewPipeline builds a Pipeline over the given compound catalog and method
// template library.
func NewPipeline(cat *catalog.Catalog, lib *method.Library, opts ...Option) (*Pipeline, error) {
	if cat == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Pipeline", "New", "require compound catalog")
	}
	if lib == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Pipeline", "New", "require method library")
	}
	p := &Pipeline{
		catalog:   cat,
		library:   lib,
		backflush: NewBackflushAdvisor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Request names one simulation: a method template, the compounds to run, and
// optional overrides applied to a copy of the template.
type Request struct {
	Method    string            `json:"method"`
	Compounds []string          `json:"compounds"`
	Overrides *method.Overrides `json:"overrides,omitempty"`
}

// Run executes the pipeline for one request. Validation problems (unknown
// template, unknown compounds, overrides outside the physical domain) fail
// during resolution before any stage executes. A stage fault returns a
// fatal-class error and no partial Result; a panic inside a stage is caught
// here and reported the same way.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	defer func() {
		if p.metrics == nil {
			return
		}
		status := statusOK
		if err != nil {
			status = statusFailed
			if errors.Classify(err) == errors.ErrorInvalid {
				status = statusInvalid
			}
		}
		p.metrics.RecordSimulation(req.Method, status)
		p.metrics.RecordProcessingDuration("simulation", "run", time.Since(start))
	}()
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.WrapFatal(errors.ErrStageComputation, "Pipeline", "Run",
				fmt.Sprintf("recover stage panic: %v", r))
			p.observe(StateFailed)
		}
	}()

	if cerr := ctx.Err(); cerr != nil {
		return p.fail(errors.WrapTransient(cerr, "Pipeline", "Run", "start simulation"))
	}

	var (
		tpl       *method.Template
		compounds []catalog.Compound
	)
	if serr := p.runStage(StateResolving, func() error {
		var rerr error
		if tpl, rerr = p.library.Resolve(req.Method, req.Overrides); rerr != nil {
			return rerr
		}
		compounds, rerr = p.catalog.Resolve(req.Compounds)
		return rerr
	}); serr != nil {
		return p.fail(serr)
	}
	runtime := tpl.Oven.TotalRuntime()

	var injectionOut *InjectionResult
	if serr := p.runStage(StateInjecting, func() error {
		var ierr error
		if injectionOut, ierr = SimulateInjection(tpl.Injection, tpl.Column.FlowRate, compounds); ierr != nil {
			return ierr
		}
		return checkFinite("Injection", injectionOut.Amounts, injectionOut.Discrimination)
	}); serr != nil {
		return p.fail(serr)
	}

	var separationOut *SeparationResult
	if serr := p.runStage(StateSeparating, func() error {
		var xerr error
		if separationOut, xerr = SimulateSeparation(ctx, tpl.Column, tpl.Oven, compounds); xerr != nil {
			return xerr
		}
		return checkFinite("Separation",
			separationOut.RetentionTimes, separationOut.PeakWidths, separationOut.Resolution)
	}); serr != nil {
		return p.fail(serr)
	}

	var detectionOut *DetectionResult
	if serr := p.runStage(StateDetecting, func() error {
		var derr error
		if detectionOut, derr = SimulateDetection(tpl.Detector, compounds, injectionOut, separationOut); derr != nil {
			return derr
		}
		return checkFinite("Detection", detectionOut.Areas, detectionOut.SignalToNoise)
	}); serr != nil {
		return p.fail(serr)
	}

	var backflush *float64
	if serr := p.runStage(StateBackflushing, func() error {
		if t, ok := p.backflush.Advise(tpl.Injection.Matrix, runtime, separationOut); ok {
			backflush = &t
		}
		return nil
	}); serr != nil {
		return p.fail(serr)
	}

	var perf Performance
	if serr := p.runStage(StateScoring, func() error {
		perf = ScorePerformance(runtime, separationOut, detectionOut)
		return nil
	}); serr != nil {
		return p.fail(serr)
	}

	var recommendations, ruleWarnings []string
	if serr := p.runStage(StateRecommending, func() error {
		recommendations, ruleWarnings = Recommend(tpl, injectionOut, separationOut, detectionOut)
		return nil
	}); serr != nil {
		return p.fail(serr)
	}

	res = &Result{
		Method:          tpl.Name,
		Version:         tpl.Version,
		Compounds:       compoundNames(compounds),
		Injection:       injectionOut,
		Separation:      separationOut,
		Detection:       detectionOut,
		Backflush:       backflush,
		Performance:     perf,
		Recommendations: recommendations,
		Warnings:        append(clampWarnings(separationOut, runtime), ruleWarnings...),
	}
	if p.metrics != nil {
		p.metrics.RecordEfficiencyScore(req.Method, perf.Score)
	}
	p.observe(StateDone)
	return res, nil
}

// runStage announces the transition, runs the stage, and records its duration
// under the state name.
func (p *Pipeline) runStage(s State, fn func() error) error {
	p.observe(s)
	start := time.Now()
	err := fn()
	if p.metrics != nil {
		p.metrics.RecordStageDuration(s.String(), time.Since(start))
	}
	return err
}

func (p *Pipeline) fail(err error) (*Result, error) {
	p.observe(StateFailed)
	return nil, err
}

func (p *Pipeline) observe(s State) {
	if p.observer != nil {
		p.observer(s)
	}
}

// clampWarnings renders one warning per run-window-clamped compound, in the
// sorted order ClampedCompounds already carries.
func clampWarnings(sep *SeparationResult, runtime float64) []string {
	if sep == nil || len(sep.ClampedCompounds) == 0 {
		return nil
	}
	out := make([]string, 0, len(sep.ClampedCompounds))
	for _, name := range sep.ClampedCompounds {
		out = append(out, fmt.Sprintf("retention time for %s clamped to %.2f min: compound may not elute within the %.1f min runtime",
			name, sep.RetentionTimes[name], runtime))
	}
	return out
}

func compoundNames(compounds []catalog.Compound) []string {
	names := make([]string, len(compounds))
	for i, c := range compounds {
		names[i] = c.Name
	}
	return names
}

// checkFinite guards the orchestrator against NaN or Inf escaping a stage.
// Any hit is a computation fault, never a reportable result.
func checkFinite(component string, maps ...map[string]float64) error {
	for _, m := range maps {
		for key, v := range m {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.WrapFatal(errors.ErrStageComputation, component, "Simulate",
					fmt.Sprintf("produce finite value for %s", key))
			}
		}
	}
	return nil
}
