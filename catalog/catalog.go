package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
)

// DetectorFamily identifies a detector technology for response-factor lookup.
type DetectorFamily string

// Supported detector families.
const (
	FID DetectorFamily = "FID" // flame ionization
	SCD DetectorFamily = "SCD" // sulfur chemiluminescence
	ECD DetectorFamily = "ECD" // electron capture
	TCD DetectorFamily = "TCD" // thermal conductivity
)

// Families returns the supported detector families in fixed order.
func Families() []DetectorFamily {
	return []DetectorFamily{FID, SCD, ECD, TCD}
}

// ParseDetectorFamily normalizes and validates a detector family name.
func ParseDetectorFamily(s string) (DetectorFamily, error) {
	f := DetectorFamily(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FID, SCD, ECD, TCD:
		return f, nil
	}
	return "", errors.WrapInvalid(
		fmt.Errorf("%w: detector family %q", errors.ErrInvalidData, s),
		"catalog", "ParseDetectorFamily", "parse detector family")
}

// Compound is immutable reference data for a single analyte.
//
// Concentration is the nominal standard concentration in mg/L; combined with
// the injected volume in µL it yields an on-column amount in nanograms.
// ResponseFactors hold the relative detector response per family; a missing
// or zero entry means the compound does not respond on that detector, which
// is a valid outcome rather than an error.
type Compound struct {
	Name            string                     `json:"name" yaml:"name"`
	CAS             string                     `json:"cas" yaml:"cas"`
	Formula         string                     `json:"formula" yaml:"formula"`
	MolecularWeight float64                    `json:"molecular_weight" yaml:"molecular_weight"` // g/mol
	BoilingPoint    float64                    `json:"boiling_point" yaml:"boiling_point"`       // °C
	Concentration   float64                    `json:"concentration" yaml:"concentration"`       // mg/L
	CarbonAtoms     int                        `json:"carbon_atoms" yaml:"carbon_atoms"`
	SulfurAtoms     int                        `json:"sulfur_atoms" yaml:"sulfur_atoms"`
	ResponseFactors map[DetectorFamily]float64 `json:"response_factors,omitempty" yaml:"response_factors,omitempty"`
}

// ResponseFactor returns the compound's relative response on a detector
// family, zero when the compound does not respond on it.
func (c Compound) ResponseFactor(f DetectorFamily) float64 {
	return c.ResponseFactors[f]
}

// Validate checks the fields a usable catalog entry must carry.
func (c Compound) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return errors.WrapInvalid(
			fmt.Errorf("%w: compound name is required", errors.ErrInvalidData),
			"catalog", "Validate", "validate compound")
	case c.MolecularWeight <= 0:
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s: molecular weight %.2f must be positive", errors.ErrInvalidData, c.Name, c.MolecularWeight),
			"catalog", "Validate", "validate compound")
	case c.BoilingPoint < -200 || c.BoilingPoint > 600:
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s: boiling point %.1f °C outside [-200, 600]", errors.ErrInvalidData, c.Name, c.BoilingPoint),
			"catalog", "Validate", "validate compound")
	case c.Concentration < 0:
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s: concentration %.2f must not be negative", errors.ErrInvalidData, c.Name, c.Concentration),
			"catalog", "Validate", "validate compound")
	case c.CarbonAtoms < 0 || c.SulfurAtoms < 0:
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s: atom counts must not be negative", errors.ErrInvalidData, c.Name),
			"catalog", "Validate", "validate compound")
	}
	return nil
}

// Catalog is a read-only compound lookup. Build it with Builtin or New, merge
// site libraries with Load/LoadFile during startup, then treat it as
// immutable; after that point it is safe for concurrent reads without
// locking.
type Catalog struct {
	compounds map[string]Compound
}

// New builds a catalog from an explicit compound list. Every entry is
// validated and duplicate names are rejected.
func New(compounds []Compound) (*Catalog, error) {
	c := &Catalog{compounds: make(map[string]Compound, len(compounds))}
	for _, comp := range compounds {
		if err := comp.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.compounds[comp.Name]; exists {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: duplicate compound %q", errors.ErrInvalidData, comp.Name),
				"catalog", "New", "build catalog")
		}
		if comp.ResponseFactors == nil {
			comp.ResponseFactors = defaultResponseFactors(comp.MolecularWeight, comp.CarbonAtoms, comp.SulfurAtoms)
		}
		c.compounds[comp.Name] = comp
	}
	return c, nil
}

// Builtin returns a catalog populated with the compiled-in compound table.
func Builtin() *Catalog {
	c := &Catalog{compounds: make(map[string]Compound, len(builtinCompounds))}
	for _, comp := range builtinCompounds {
		c.compounds[comp.Name] = comp
	}
	return c
}

// Get returns the named compound.
func (c *Catalog) Get(name string) (Compound, bool) {
	comp, ok := c.compounds[name]
	return comp, ok
}

// Len returns the number of compounds in the catalog.
func (c *Catalog) Len() int {
	return len(c.compounds)
}

// Names returns all compound names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.compounds))
	for name := range c.compounds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up every requested compound, preserving request order and
// dropping duplicate requests after the first occurrence. When any name is
// missing it fails with a single error listing ALL unknown names, so a caller
// can fix the whole request in one round trip instead of discovering missing
// compounds one at a time.
func (c *Catalog) Resolve(names []string) ([]Compound, error) {
	if len(names) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no compounds requested", errors.ErrInvalidData),
			"catalog", "Resolve", "resolve compounds")
	}

	resolved := make([]Compound, 0, len(names))
	seen := make(map[string]bool, len(names))
	var missing []string

	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		comp, ok := c.compounds[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		resolved = append(resolved, comp)
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownCompound, strings.Join(missing, ", ")),
			"catalog", "Resolve", "resolve compounds")
	}
	return resolved, nil
}
