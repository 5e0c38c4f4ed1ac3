package simulation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	pkgerrors "github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
)

func fptr(v float64) *float64 { return &v }

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := NewPipeline(catalog.Builtin(), method.Builtin(), opts...)
	require.NoError(t, err)
	return p
}

func petroleumRequest() Request {
	return Request{
		Method:    "Petroleum_Hydrocarbons_C8_C40",
		Compounds: []string{"n-Octane", "n-Decane", "n-Dodecane", "Toluene", "Xylene"},
		Overrides: &method.Overrides{
			InjectionVolume: fptr(0.2),
			SplitRatio:      fptr(20.0),
			CarrierFlow:     fptr(4.0),
		},
	}
}

func TestPipeline_EndToEndPetroleum(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Run(context.Background(), petroleumRequest())
	require.NoError(t, err)

	assert.Equal(t, "Petroleum_Hydrocarbons_C8_C40", res.Method)
	assert.Equal(t, "1.2.0", res.Version)
	assert.Equal(t, []string{"n-Octane", "n-Decane", "n-Dodecane", "Toluene", "Xylene"}, res.Compounds)

	// Retention follows boiling point: Toluene 110.6 °C through
	// n-Dodecane 216.3 °C, at doubled flow against the 192 °C average.
	wantRT := map[string]float64{
		"Toluene":    3.32,
		"n-Octane":   3.57,
		"Xylene":     3.80,
		"n-Decane":   4.55,
		"n-Dodecane": 5.70,
	}
	require.Len(t, res.Separation.RetentionTimes, len(wantRT))
	for name, want := range wantRT {
		assert.InDelta(t, want, res.Separation.RetentionTimes[name], 0.01, "retention for %s", name)
	}
	byBoilingPoint := []string{"Toluene", "n-Octane", "Xylene", "n-Decane", "n-Dodecane"}
	for i := 1; i < len(byBoilingPoint); i++ {
		assert.Less(t,
			res.Separation.RetentionTimes[byBoilingPoint[i-1]],
			res.Separation.RetentionTimes[byBoilingPoint[i]],
			"elution order must follow boiling point")
	}
	assert.InDelta(t, 75000.0, res.Separation.Plates, 1e-6)

	require.NotNil(t, res.Backflush)
	assert.InDelta(t, 7.70, *res.Backflush, 0.01)
	assert.Greater(t, *res.Backflush, res.Separation.RetentionTimes["n-Dodecane"])

	assert.InDelta(t, 0.95, res.Injection.Efficiency, 1e-9)
	for name, snr := range res.Detection.SignalToNoise {
		assert.Greater(t, snr, 10.0, "signal for %s", name)
	}

	assert.GreaterOrEqual(t, res.Performance.Score, 0.0)
	assert.LessOrEqual(t, res.Performance.Score, 100.0)
	assert.Equal(t, 100.0, res.Performance.Score, "well-resolved strong peaks saturate the score")
	assert.InDelta(t, 35.0, res.Performance.TotalTime, 1e-9)

	assert.Empty(t, res.Recommendations)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "runtime 35.0 min exceeds 30 min")
}

func TestPipeline_DeterministicResults(t *testing.T) {
	p := newTestPipeline(t)
	req := petroleumRequest()

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical requests must serialize identically")
}

func TestPipeline_UnknownCompoundFailsBeforeStages(t *testing.T) {
	var states []State
	p := newTestPipeline(t, WithStageObserver(func(s State) { states = append(states, s) }))

	res, err := p.Run(context.Background(), Request{
		Method:    "Petroleum_Hydrocarbons_C8_C40",
		Compounds: []string{"Unobtainium"},
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownCompound)
	assert.True(t, pkgerrors.IsInvalid(err))
	assert.Contains(t, err.Error(), "Unobtainium")

	stageRuns := 0
	for _, s := range states {
		switch s {
		case StateInjecting, StateSeparating, StateDetecting, StateBackflushing, StateScoring, StateRecommending:
			stageRuns++
		}
	}
	assert.Zero(t, stageRuns, "no stage may execute for an unknown compound")
	assert.Equal(t, []State{StateResolving, StateFailed}, states)
}

func TestPipeline_ValidationFailures(t *testing.T) {
	p := newTestPipeline(t)
	tests := []struct {
		name   string
		req    Request
		target error
	}{
		{
			"unknown template",
			Request{Method: "No_Such_Method", Compounds: []string{"Toluene"}},
			pkgerrors.ErrUnknownTemplate,
		},
		{
			"override outside domain",
			Request{
				Method:    "Petroleum_Hydrocarbons_C8_C40",
				Compounds: []string{"Toluene"},
				Overrides: &method.Overrides{CarrierFlow: fptr(-1.0)},
			},
			pkgerrors.ErrInvalidOverride,
		},
		{
			"empty compound list",
			Request{Method: "Petroleum_Hydrocarbons_C8_C40"},
			pkgerrors.ErrInvalidData,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, pkgerrors.IsInvalid(err))
		})
	}
}

func TestPipeline_StateSequence(t *testing.T) {
	var states []State
	p := newTestPipeline(t, WithStageObserver(func(s State) { states = append(states, s) }))

	_, err := p.Run(context.Background(), petroleumRequest())
	require.NoError(t, err)

	assert.Equal(t, []State{
		StateResolving,
		StateInjecting,
		StateSeparating,
		StateDetecting,
		StateBackflushing,
		StateScoring,
		StateRecommending,
		StateDone,
	}, states)
	assert.True(t, states[len(states)-1].Terminal())
}

func TestPipeline_AqueousMatrixSkipsBackflush(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Run(context.Background(), Request{
		Method:    "BTEX_Aromatics",
		Compounds: []string{"Benzene", "Toluene", "Ethylbenzene", "Xylene"},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Backflush, "environmental water matrix must not schedule a backflush")
}

func TestPipeline_ClampsAndWarns(t *testing.T) {
	p := newTestPipeline(t)

	// n-Eicosane at a crawling 0.5 mL/min would elute near 96 minutes,
	// far past the 35 minute program.
	res, err := p.Run(context.Background(), Request{
		Method:    "Petroleum_Hydrocarbons_C8_C40",
		Compounds: []string{"n-Eicosane"},
		Overrides: &method.Overrides{CarrierFlow: fptr(0.5)},
	})
	require.NoError(t, err)

	rt := res.Separation.RetentionTimes["n-Eicosane"]
	assert.InDelta(t, 33.0, rt, 1e-9)
	assert.LessOrEqual(t, rt, 35.0-2.0)
	assert.Equal(t, []string{"n-Eicosane"}, res.Separation.ClampedCompounds)

	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "n-Eicosane")
	assert.Contains(t, res.Warnings[0], "clamped")
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestPipeline(t).Run(ctx, petroleumRequest())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, pkgerrors.IsTransient(err))
}

func TestPipeline_RecoversObserverPanic(t *testing.T) {
	p := newTestPipeline(t, WithStageObserver(func(s State) {
		if s == StateDetecting {
			panic("observer exploded")
		}
	}))

	res, err := p.Run(context.Background(), petroleumRequest())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, pkgerrors.ErrStageComputation)
	assert.True(t, pkgerrors.IsFatal(err))
	assert.Contains(t, err.Error(), "observer exploded")
}

func TestPipeline_CompareMethods(t *testing.T) {
	p := newTestPipeline(t)
	out, err := p.Compare(context.Background(),
		[]string{"Petroleum_Hydrocarbons_C8_C40", "BTEX_Aromatics", "No_Such_Method"},
		[]string{"Toluene", "Xylene"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "Petroleum_Hydrocarbons_C8_C40", out[0].Method)
	require.NotNil(t, out[0].Result)
	assert.Empty(t, out[0].Err)

	assert.Equal(t, "BTEX_Aromatics", out[1].Method)
	require.NotNil(t, out[1].Result)

	assert.Equal(t, "No_Such_Method", out[2].Method)
	assert.Nil(t, out[2].Result)
	assert.Contains(t, out[2].Err, "unknown method template")

	best, ok := Best(out)
	require.True(t, ok)
	require.NotNil(t, best.Result)
	assert.GreaterOrEqual(t, best.Result.Performance.Score, out[0].Result.Performance.Score)
	assert.GreaterOrEqual(t, best.Result.Performance.Score, out[1].Result.Performance.Score)

	_, err = p.Compare(context.Background(), nil, []string{"Toluene"}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))
}

func TestPipeline_RecordsMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	metrics := registry.CoreMetrics()
	p, err := NewPipeline(catalog.Builtin(), method.Builtin(), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), petroleumRequest())
	require.NoError(t, err)
	_, err = p.Run(context.Background(), Request{Method: "No_Such_Method", Compounds: []string{"Toluene"}})
	require.Error(t, err)

	assert.InDelta(t, 1.0, testutil.ToFloat64(
		metrics.SimulationsTotal.WithLabelValues("Petroleum_Hydrocarbons_C8_C40", "ok")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(
		metrics.SimulationsTotal.WithLabelValues("No_Such_Method", "invalid")), 1e-9)
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	_, err := NewPipeline(nil, method.Builtin())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))

	_, err = NewPipeline(catalog.Builtin(), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))
}

func TestResult_Summary(t *testing.T) {
	p := newTestPipeline(t)
	res, err := p.Run(context.Background(), petroleumRequest())
	require.NoError(t, err)

	summary := res.Summary()
	assert.Contains(t, summary, "Petroleum_Hydrocarbons_C8_C40 v1.2.0")
	assert.Contains(t, summary, "5 compounds")
	assert.Contains(t, summary, "score 100.0")
	assert.Contains(t, summary, "backflush 7.70 min")
}
