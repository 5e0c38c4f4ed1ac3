package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	pkgerrors "github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
)

func lightHeavyPair() []catalog.Compound {
	return []catalog.Compound{
		{Name: "Light", MolecularWeight: 90.0, BoilingPoint: 110.0, Concentration: 100.0},
		{Name: "Heavy", MolecularWeight: 300.0, BoilingPoint: 350.0, Concentration: 100.0},
	}
}

func splitInjection(volume, ratio, temperature float64) method.Injection {
	return method.Injection{
		Volume:      volume,
		Type:        method.Liquid,
		Mode:        method.Split,
		SplitRatio:  ratio,
		Temperature: temperature,
		Matrix:      "Petroleum",
	}
}

func TestSimulateInjection_SplitAmounts(t *testing.T) {
	out, err := SimulateInjection(splitInjection(1.0, 50.0, 280.0), 2.0, lightHeavyPair())
	require.NoError(t, err)

	// 1.0 µL at 280 °C sits exactly at the nominal transfer efficiency.
	assert.InDelta(t, 0.95, out.Efficiency, 1e-9)
	assert.InDelta(t, 100.0, out.SplitFlow, 1e-9)

	// Light caps at the 0.95 discrimination ceiling, heavy loses mass.
	assert.InDelta(t, 0.95/50.0, out.Discrimination["Light"], 1e-9)
	assert.InDelta(t, 0.70/50.0, out.Discrimination["Heavy"], 1e-9)

	assert.InDelta(t, 1.805, out.Amounts["Light"], 1e-6)
	assert.InDelta(t, 1.33, out.Amounts["Heavy"], 1e-6)
}

func TestSimulateInjection_SplitRatioMonotonic(t *testing.T) {
	compounds := lightHeavyPair()
	ratios := []float64{2, 5, 10, 20, 50, 100, 500}

	var prev *InjectionResult
	for _, ratio := range ratios {
		out, err := SimulateInjection(splitInjection(1.0, ratio, 280.0), 2.0, compounds)
		require.NoError(t, err)
		if prev != nil {
			for _, c := range compounds {
				assert.LessOrEqual(t, out.Amounts[c.Name], prev.Amounts[c.Name],
					"amount for %s must not grow when split ratio rises", c.Name)
			}
		}
		prev = out
	}
}

func TestSimulateInjection_SplitlessBypassesRatio(t *testing.T) {
	compounds := lightHeavyPair()

	a := splitInjection(1.0, 50.0, 280.0)
	a.Mode = method.Splitless
	b := splitInjection(1.0, 5.0, 280.0)
	b.Mode = method.Splitless

	outA, err := SimulateInjection(a, 2.0, compounds)
	require.NoError(t, err)
	outB, err := SimulateInjection(b, 2.0, compounds)
	require.NoError(t, err)

	// The ratio is inert outside split mode.
	assert.Equal(t, outA.Amounts, outB.Amounts)
	assert.InDelta(t, 0.0, outA.SplitFlow, 1e-9)

	split, err := SimulateInjection(splitInjection(1.0, 50.0, 280.0), 2.0, compounds)
	require.NoError(t, err)
	for _, c := range compounds {
		assert.Greater(t, outA.Amounts[c.Name], split.Amounts[c.Name])
	}
}

func TestSimulateInjection_HeavierDiscriminatedMore(t *testing.T) {
	out, err := SimulateInjection(splitInjection(1.0, 20.0, 280.0), 2.0, lightHeavyPair())
	require.NoError(t, err)
	assert.Less(t, out.Discrimination["Heavy"], out.Discrimination["Light"])
}

func TestSimulateInjection_EfficiencySaturates(t *testing.T) {
	tests := []struct {
		name        string
		volume      float64
		temperature float64
		want        float64
	}{
		{"nominal", 1.0, 280.0, 0.95},
		{"small volume capped at unity", 0.2, 280.0, 0.95},
		{"large volume floors", 5.0, 280.0, 0.95 * 0.70},
		{"huge headspace volume floors", 1000.0, 280.0, 0.95 * 0.70},
		{"cold inlet floors", 1.0, 30.0, 0.95 * 0.80},
		{"hot inlet caps", 1.0, 450.0, 0.95 * 1.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inj := splitInjection(tt.volume, 10.0, tt.temperature)
			if tt.volume > method.MaxLiquidVolume {
				inj.Type = method.Headspace
			}
			out, err := SimulateInjection(inj, 2.0, lightHeavyPair())
			require.NoError(t, err)
			assert.InDelta(t, tt.want, out.Efficiency, 1e-9)
			assert.LessOrEqual(t, out.Efficiency, 1.0)
			assert.Greater(t, out.Efficiency, 0.0)
		})
	}
}

func TestSimulateInjection_NoCompounds(t *testing.T) {
	_, err := SimulateInjection(splitInjection(1.0, 50.0, 280.0), 2.0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
	assert.True(t, pkgerrors.IsInvalid(err))
}

func TestSimulateInjection_DefensiveFaults(t *testing.T) {
	tests := []struct {
		name string
		inj  method.Injection
	}{
		{"zero volume", splitInjection(0.0, 50.0, 280.0)},
		{"zero split ratio in split mode", splitInjection(1.0, 0.0, 280.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SimulateInjection(tt.inj, 2.0, lightHeavyPair())
			require.Error(t, err)
			assert.ErrorIs(t, err, pkgerrors.ErrStageComputation)
			assert.True(t, pkgerrors.IsFatal(err))
		})
	}
}
