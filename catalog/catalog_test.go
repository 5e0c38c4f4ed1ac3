package catalog

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
)

func TestBuiltin_Contents(t *testing.T) {
	cat := Builtin()

	require.GreaterOrEqual(t, cat.Len(), 18)

	decane, ok := cat.Get("n-Decane")
	require.True(t, ok)
	assert.Equal(t, "124-18-5", decane.CAS)
	assert.InDelta(t, 142.29, decane.MolecularWeight, 0.01)
	assert.InDelta(t, 174.2, decane.BoilingPoint, 0.1)
	assert.Equal(t, 10, decane.CarbonAtoms)
	assert.Equal(t, 0, decane.SulfurAtoms)

	// The end-to-end petroleum scenario compounds must all be present.
	for _, name := range []string{"n-Octane", "n-Decane", "n-Dodecane", "Toluene", "Xylene"} {
		_, ok := cat.Get(name)
		assert.True(t, ok, "missing builtin compound %s", name)
	}

	_, ok = cat.Get("Unobtanium")
	assert.False(t, ok)
}

func TestBuiltin_Names_Sorted(t *testing.T) {
	cat := Builtin()
	names := cat.Names()

	require.Len(t, names, cat.Len())
	assert.True(t, sort.StringsAreSorted(names))
}

func TestCompound_ResponseFactor(t *testing.T) {
	cat := Builtin()

	decane, _ := cat.Get("n-Decane")
	thiophene, _ := cat.Get("Thiophene")
	hexane, _ := cat.Get("n-Hexane")

	// FID tracks carbon number, normalized to n-decane.
	assert.InDelta(t, 1.0, decane.ResponseFactor(FID), 1e-9)
	assert.InDelta(t, 0.6, hexane.ResponseFactor(FID), 1e-9)

	// SCD is sulfur-selective: exactly zero for sulfur-free compounds is a
	// valid response, not an error.
	assert.Equal(t, 0.0, hexane.ResponseFactor(SCD))
	assert.Equal(t, 0.0, decane.ResponseFactor(SCD))
	assert.InDelta(t, 1.0, thiophene.ResponseFactor(SCD), 1e-9)

	// TCD responds to everything.
	for _, name := range cat.Names() {
		comp, _ := cat.Get(name)
		assert.Greater(t, comp.ResponseFactor(TCD), 0.0, "TCD factor for %s", name)
	}

	// Unknown family reads zero.
	assert.Equal(t, 0.0, decane.ResponseFactor(DetectorFamily("NPD")))
}

func TestParseDetectorFamily(t *testing.T) {
	tests := []struct {
		input   string
		want    DetectorFamily
		wantErr bool
	}{
		{"FID", FID, false},
		{"fid", FID, false},
		{" scd ", SCD, false},
		{"Ecd", ECD, false},
		{"TCD", TCD, false},
		{"NPD", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDetectorFamily(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.IsInvalid(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_Resolve(t *testing.T) {
	cat := Builtin()

	t.Run("preserves request order", func(t *testing.T) {
		compounds, err := cat.Resolve([]string{"Toluene", "n-Octane", "n-Hexane"})
		require.NoError(t, err)
		require.Len(t, compounds, 3)
		assert.Equal(t, "Toluene", compounds[0].Name)
		assert.Equal(t, "n-Octane", compounds[1].Name)
		assert.Equal(t, "n-Hexane", compounds[2].Name)
	})

	t.Run("drops duplicate requests", func(t *testing.T) {
		compounds, err := cat.Resolve([]string{"Toluene", "Toluene", "n-Octane"})
		require.NoError(t, err)
		require.Len(t, compounds, 2)
		assert.Equal(t, "Toluene", compounds[0].Name)
		assert.Equal(t, "n-Octane", compounds[1].Name)
	})

	t.Run("lists all unknown names in one error", func(t *testing.T) {
		_, err := cat.Resolve([]string{"Toluene", "Kryptonite", "n-Octane", "Adamantium"})
		require.Error(t, err)
		assert.ErrorIs(t, err, pkgerrors.ErrUnknownCompound)
		assert.True(t, pkgerrors.IsInvalid(err))
		// Both missing names, sorted, in a single message.
		assert.Contains(t, err.Error(), "Adamantium, Kryptonite")
	})

	t.Run("empty request is invalid", func(t *testing.T) {
		_, err := cat.Resolve(nil)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsInvalid(err))
	})
}

func TestNew_Validation(t *testing.T) {
	valid := Compound{Name: "Pentane", CAS: "109-66-0", Formula: "C5H12",
		MolecularWeight: 72.15, BoilingPoint: 36.1, Concentration: 100, CarbonAtoms: 5}

	t.Run("derives response factors when absent", func(t *testing.T) {
		cat, err := New([]Compound{valid})
		require.NoError(t, err)
		comp, ok := cat.Get("Pentane")
		require.True(t, ok)
		assert.InDelta(t, 0.5, comp.ResponseFactor(FID), 1e-9)
		assert.Equal(t, 0.0, comp.ResponseFactor(SCD))
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := New([]Compound{valid, valid})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate compound")
	})

	tests := []struct {
		name   string
		mutate func(c *Compound)
	}{
		{"empty name", func(c *Compound) { c.Name = "  " }},
		{"zero molecular weight", func(c *Compound) { c.MolecularWeight = 0 }},
		{"boiling point too high", func(c *Compound) { c.BoilingPoint = 700 }},
		{"negative concentration", func(c *Compound) { c.Concentration = -1 }},
		{"negative atoms", func(c *Compound) { c.SulfurAtoms = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := valid
			tt.mutate(&comp)
			_, err := New([]Compound{comp})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsInvalid(err))
		})
	}
}

func TestCatalog_Load(t *testing.T) {
	const library = `
compounds:
  - name: n-Decane
    cas: 124-18-5
    formula: C10H22
    molecular_weight: 142.29
    boiling_point: 174.2
    concentration: 250.0
    carbon_atoms: 10
  - name: Cyclohexane
    cas: 110-82-7
    formula: C6H12
    molecular_weight: 84.16
    boiling_point: 80.7
    concentration: 100.0
    carbon_atoms: 6
`

	cat := Builtin()
	before := cat.Len()

	require.NoError(t, cat.Load(strings.NewReader(library)))

	// Same-name entry replaces the builtin, new entry is added.
	decane, ok := cat.Get("n-Decane")
	require.True(t, ok)
	assert.InDelta(t, 250.0, decane.Concentration, 1e-9)

	cyclo, ok := cat.Get("Cyclohexane")
	require.True(t, ok)
	assert.InDelta(t, 0.6, cyclo.ResponseFactor(FID), 1e-9)

	assert.Equal(t, before+1, cat.Len())
}

func TestCatalog_Load_Atomic(t *testing.T) {
	// Second entry fails validation: nothing may be merged.
	const library = `
compounds:
  - name: Cyclohexane
    molecular_weight: 84.16
    boiling_point: 80.7
    concentration: 100.0
    carbon_atoms: 6
  - name: Broken
    molecular_weight: -1
    boiling_point: 80.0
`

	cat := Builtin()
	before := cat.Len()

	err := cat.Load(strings.NewReader(library))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalid(err))

	_, ok := cat.Get("Cyclohexane")
	assert.False(t, ok, "partial merge after failed load")
	assert.Equal(t, before, cat.Len())
}

func TestCatalog_Load_Malformed(t *testing.T) {
	cat := Builtin()

	err := cat.Load(strings.NewReader("compounds: [not a compound"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrParsingFailed)

	err = cat.Load(strings.NewReader("compounds: []"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
}
