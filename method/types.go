package method

import (
	"fmt"
	"math"
	"strings"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
)

// InjectionType identifies the physical sample state at injection.
type InjectionType string

// Supported injection types.
const (
	Liquid    InjectionType = "liquid"
	Gas       InjectionType = "gas"
	Headspace InjectionType = "headspace"
)

// InjectionMode identifies how the inlet routes sample to the column.
type InjectionMode string

// Supported injector modes.
const (
	Split     InjectionMode = "split"
	Splitless InjectionMode = "splitless"
	OnColumn  InjectionMode = "on-column"
)

// Physical plausibility limits enforced during validation. Values outside
// these ranges are rejected before simulation begins.
const (
	MinTemperature = 30.0  // °C, inlet/oven/detector lower bound
	MaxTemperature = 450.0 // °C, inlet/oven/detector upper bound

	MaxLiquidVolume = 10.0   // µL
	MaxGasVolume    = 2500.0 // µL, gas and headspace sample loops

	MaxSplitRatio = 1000.0
	MaxRampRate   = 50.0 // °C/min

	MinColumnLength  = 5.0   // m
	MaxColumnLength  = 105.0 // m
	MinInnerDiameter = 0.05  // mm
	MaxInnerDiameter = 0.75  // mm
	MinFilmThickness = 0.05  // µm
	MaxFilmThickness = 10.0  // µm

	MaxCarrierFlow = 20.0 // mL/min

	MinRuntime = 5.0 // min, shortest usable oven program
)

// Injection holds the inlet configuration for a method.
type Injection struct {
	Volume      float64       `json:"volume" yaml:"volume"` // µL
	Type        InjectionType `json:"type" yaml:"type"`
	Mode        InjectionMode `json:"mode" yaml:"mode"`
	SplitRatio  float64       `json:"split_ratio,omitempty" yaml:"split_ratio,omitempty"` // n:1, split mode only
	Temperature float64       `json:"temperature" yaml:"temperature"`                     // °C
	Matrix      string        `json:"matrix" yaml:"matrix"`
}

// SplitFlow returns the split-vent flow in mL/min implied by the split ratio
// and a column flow. Splitless and on-column modes vent nothing.
func (i Injection) SplitFlow(columnFlow float64) float64 {
	if i.Mode != Split || i.SplitRatio <= 0 || columnFlow <= 0 {
		return 0
	}
	return i.SplitRatio * columnFlow
}

// Validate checks the injection configuration against physical limits.
func (i Injection) Validate() error {
	maxVolume := MaxLiquidVolume
	switch i.Type {
	case Liquid:
	case Gas, Headspace:
		maxVolume = MaxGasVolume
	default:
		return invalidf("injection type %q not one of liquid, gas, headspace", i.Type)
	}

	switch i.Mode {
	case Split:
		if i.SplitRatio <= 0 || i.SplitRatio > MaxSplitRatio {
			return invalidf("split ratio %.1f outside (0, %.0f] in split mode", i.SplitRatio, MaxSplitRatio)
		}
	case Splitless, OnColumn:
	default:
		return invalidf("injector mode %q not one of split, splitless, on-column", i.Mode)
	}

	if i.Volume <= 0 || i.Volume > maxVolume {
		return invalidf("injection volume %.2f µL outside (0, %.0f] for %s injection", i.Volume, maxVolume, i.Type)
	}
	if i.Temperature < MinTemperature || i.Temperature > MaxTemperature {
		return invalidf("inlet temperature %.1f °C outside [%.0f, %.0f]", i.Temperature, MinTemperature, MaxTemperature)
	}
	return nil
}

// Column holds the capillary column geometry and carrier configuration.
type Column struct {
	Length        float64 `json:"length" yaml:"length"`                 // m
	InnerDiameter float64 `json:"inner_diameter" yaml:"inner_diameter"` // mm
	FilmThickness float64 `json:"film_thickness" yaml:"film_thickness"` // µm
	Phase         string  `json:"phase" yaml:"phase"`
	CarrierGas    string  `json:"carrier_gas" yaml:"carrier_gas"`
	FlowRate      float64 `json:"flow_rate" yaml:"flow_rate"` // mL/min
}

// Validate checks the column configuration against physical limits.
func (c Column) Validate() error {
	switch {
	case c.Length < MinColumnLength || c.Length > MaxColumnLength:
		return invalidf("column length %.1f m outside [%.0f, %.0f]", c.Length, MinColumnLength, MaxColumnLength)
	case c.InnerDiameter < MinInnerDiameter || c.InnerDiameter > MaxInnerDiameter:
		return invalidf("inner diameter %.3f mm outside [%.2f, %.2f]", c.InnerDiameter, MinInnerDiameter, MaxInnerDiameter)
	case c.FilmThickness < MinFilmThickness || c.FilmThickness > MaxFilmThickness:
		return invalidf("film thickness %.2f µm outside [%.2f, %.0f]", c.FilmThickness, MinFilmThickness, MaxFilmThickness)
	case c.FlowRate <= 0 || c.FlowRate > MaxCarrierFlow:
		return invalidf("carrier flow %.2f mL/min outside (0, %.0f]", c.FlowRate, MaxCarrierFlow)
	}
	switch c.CarrierGas {
	case "Helium", "Hydrogen", "Nitrogen":
	default:
		return invalidf("carrier gas %q not one of Helium, Hydrogen, Nitrogen", c.CarrierGas)
	}
	return nil
}

// Ramp is one oven-program segment: heat at Rate to Target, then hold.
type Ramp struct {
	Rate   float64 `json:"rate" yaml:"rate"`                     // °C/min
	Target float64 `json:"target" yaml:"target"`                 // °C
	Hold   float64 `json:"hold,omitempty" yaml:"hold,omitempty"` // min
}

// OvenProgram is the temperature program: an initial isothermal hold followed
// by ramp segments. Total runtime and average temperature are derived, never
// stored.
type OvenProgram struct {
	InitialTemp float64 `json:"initial_temp" yaml:"initial_temp"` // °C
	InitialHold float64 `json:"initial_hold" yaml:"initial_hold"` // min
	Ramps       []Ramp  `json:"ramps,omitempty" yaml:"ramps,omitempty"`
}

// TotalRuntime returns the program duration in minutes.
func (o OvenProgram) TotalRuntime() float64 {
	total := o.InitialHold
	prev := o.InitialTemp
	for _, r := range o.Ramps {
		if r.Rate > 0 {
			total += math.Abs(r.Target-prev) / r.Rate
		}
		total += r.Hold
		prev = r.Target
	}
	return total
}

// AverageTemperature returns the time-weighted mean oven temperature over the
// whole program, the driving term for retention estimation.
func (o OvenProgram) AverageTemperature() float64 {
	runtime := o.TotalRuntime()
	if runtime <= 0 {
		return o.InitialTemp
	}

	weighted := o.InitialTemp * o.InitialHold
	prev := o.InitialTemp
	for _, r := range o.Ramps {
		if r.Rate > 0 {
			rampTime := math.Abs(r.Target-prev) / r.Rate
			weighted += (prev + r.Target) / 2 * rampTime
		}
		weighted += r.Target * r.Hold
		prev = r.Target
	}
	return weighted / runtime
}

// TemperatureAt returns the oven temperature at elapsed time t minutes.
// Times past the end of the program report the final temperature.
func (o OvenProgram) TemperatureAt(t float64) float64 {
	if t <= o.InitialHold {
		return o.InitialTemp
	}

	elapsed := o.InitialHold
	prev := o.InitialTemp
	for _, r := range o.Ramps {
		if r.Rate > 0 {
			rampTime := math.Abs(r.Target-prev) / r.Rate
			if t <= elapsed+rampTime {
				if r.Target < prev {
					return prev - r.Rate*(t-elapsed)
				}
				return prev + r.Rate*(t-elapsed)
			}
			elapsed += rampTime
		}
		if t <= elapsed+r.Hold {
			return r.Target
		}
		elapsed += r.Hold
		prev = r.Target
	}
	return prev
}

// ProfilePoint is one sample of the oven temperature profile.
type ProfilePoint struct {
	Time        float64 `json:"time"`        // min
	Temperature float64 `json:"temperature"` // °C
}

// Profile samples the temperature program every step minutes from injection
// to the end of the run. The final point always lands exactly on the total
// runtime. A non-positive step defaults to 0.5 min.
func (o OvenProgram) Profile(step float64) []ProfilePoint {
	if step <= 0 {
		step = 0.5
	}
	runtime := o.TotalRuntime()

	points := make([]ProfilePoint, 0, int(runtime/step)+2)
	for t := 0.0; t < runtime; t += step {
		points = append(points, ProfilePoint{Time: t, Temperature: o.TemperatureAt(t)})
	}
	return append(points, ProfilePoint{Time: runtime, Temperature: o.TemperatureAt(runtime)})
}

// Validate checks the oven program against physical limits.
func (o OvenProgram) Validate() error {
	if o.InitialTemp < MinTemperature || o.InitialTemp > MaxTemperature {
		return invalidf("oven initial temperature %.1f °C outside [%.0f, %.0f]", o.InitialTemp, MinTemperature, MaxTemperature)
	}
	if o.InitialHold < 0 {
		return invalidf("oven initial hold %.2f min must not be negative", o.InitialHold)
	}
	for n, r := range o.Ramps {
		if r.Rate <= 0 || r.Rate > MaxRampRate {
			return invalidf("ramp %d rate %.2f °C/min outside (0, %.0f]", n+1, r.Rate, MaxRampRate)
		}
		if r.Target < MinTemperature || r.Target > MaxTemperature {
			return invalidf("ramp %d target %.1f °C outside [%.0f, %.0f]", n+1, r.Target, MinTemperature, MaxTemperature)
		}
		if r.Hold < 0 {
			return invalidf("ramp %d hold %.2f min must not be negative", n+1, r.Hold)
		}
	}
	if runtime := o.TotalRuntime(); runtime < MinRuntime {
		return invalidf("oven program runtime %.1f min below the %.0f min minimum", runtime, MinRuntime)
	}
	return nil
}

// SCDParams are sulfur-chemiluminescence settings.
type SCDParams struct {
	PMTVoltage        float64 `json:"pmt_voltage" yaml:"pmt_voltage"`               // V
	BurnerTemperature float64 `json:"burner_temperature" yaml:"burner_temperature"` // °C
}

// ECDParams are electron-capture settings.
type ECDParams struct {
	StandingCurrent float64 `json:"standing_current" yaml:"standing_current"` // nA
}

// TCDParams are thermal-conductivity settings.
type TCDParams struct {
	FilamentTemperature float64 `json:"filament_temperature" yaml:"filament_temperature"` // °C
}

// Detector holds the detector configuration. GasFlows maps auxiliary gas
// names ("H2", "Air", "Makeup", ...) to flows in mL/min. Family-specific
// settings live in the matching typed params field; Extra is an open bag for
// knobs with no cross-detector meaning and no simulation effect.
type Detector struct {
	Family      catalog.DetectorFamily `json:"family" yaml:"family"`
	Temperature float64                `json:"temperature" yaml:"temperature"` // °C
	GasFlows    map[string]float64     `json:"gas_flows,omitempty" yaml:"gas_flows,omitempty"`
	SCD         *SCDParams             `json:"scd,omitempty" yaml:"scd,omitempty"`
	ECD         *ECDParams             `json:"ecd,omitempty" yaml:"ecd,omitempty"`
	TCD         *TCDParams             `json:"tcd,omitempty" yaml:"tcd,omitempty"`
	Extra       map[string]float64     `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Validate checks the detector configuration, including that family-specific
// params match the declared family.
func (d Detector) Validate() error {
	if _, err := catalog.ParseDetectorFamily(string(d.Family)); err != nil {
		return invalidf("detector family %q not one of FID, SCD, ECD, TCD", d.Family)
	}
	if d.Temperature < MinTemperature || d.Temperature > MaxTemperature {
		return invalidf("detector temperature %.1f °C outside [%.0f, %.0f]", d.Temperature, MinTemperature, MaxTemperature)
	}
	for gas, flow := range d.GasFlows {
		if flow < 0 {
			return invalidf("detector gas %q flow %.2f mL/min must not be negative", gas, flow)
		}
	}

	if d.SCD != nil {
		if d.Family != catalog.SCD {
			return invalidf("SCD params set on %s detector", d.Family)
		}
		if d.SCD.PMTVoltage < 400 || d.SCD.PMTVoltage > 1200 {
			return invalidf("PMT voltage %.0f V outside [400, 1200]", d.SCD.PMTVoltage)
		}
		if d.SCD.BurnerTemperature < 500 || d.SCD.BurnerTemperature > 1100 {
			return invalidf("burner temperature %.0f °C outside [500, 1100]", d.SCD.BurnerTemperature)
		}
	}
	if d.ECD != nil {
		if d.Family != catalog.ECD {
			return invalidf("ECD params set on %s detector", d.Family)
		}
		if d.ECD.StandingCurrent <= 0 || d.ECD.StandingCurrent > 10 {
			return invalidf("standing current %.2f nA outside (0, 10]", d.ECD.StandingCurrent)
		}
	}
	if d.TCD != nil {
		if d.Family != catalog.TCD {
			return invalidf("TCD params set on %s detector", d.Family)
		}
		if d.TCD.FilamentTemperature < 100 || d.TCD.FilamentTemperature > 500 {
			return invalidf("filament temperature %.0f °C outside [100, 500]", d.TCD.FilamentTemperature)
		}
	}
	return nil
}

// Template is a complete named method: one injection, one column, one oven
// program and one detector. Templates held by a Library are read-only;
// simulation runs operate on resolved deep copies.
type Template struct {
	Name        string      `json:"name" yaml:"name"`
	Version     string      `json:"version" yaml:"version"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Injection   Injection   `json:"injection" yaml:"injection"`
	Column      Column      `json:"column" yaml:"column"`
	Oven        OvenProgram `json:"oven" yaml:"oven"`
	Detector    Detector    `json:"detector" yaml:"detector"`
}

// Validate checks the whole template.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return invalidf("template name is required")
	}
	if strings.TrimSpace(t.Version) == "" {
		return invalidf("template %s: version is required", t.Name)
	}
	if err := t.Injection.Validate(); err != nil {
		return err
	}
	if err := t.Column.Validate(); err != nil {
		return err
	}
	if err := t.Oven.Validate(); err != nil {
		return err
	}
	return t.Detector.Validate()
}

// normalize canonicalizes the enum-like string fields so that YAML-loaded
// templates and override values compare cleanly against the constants.
func (t *Template) normalize() {
	t.Injection.Type = InjectionType(strings.ToLower(strings.TrimSpace(string(t.Injection.Type))))
	t.Injection.Mode = InjectionMode(strings.ToLower(strings.TrimSpace(string(t.Injection.Mode))))
	t.Detector.Family = catalog.DetectorFamily(strings.ToUpper(strings.TrimSpace(string(t.Detector.Family))))
	t.Column.CarrierGas = normalizeGas(t.Column.CarrierGas)
}

func normalizeGas(gas string) string {
	gas = strings.TrimSpace(gas)
	if gas == "" {
		return gas
	}
	return strings.ToUpper(gas[:1]) + strings.ToLower(gas[1:])
}

func invalidf(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidOverride, fmt.Sprintf(format, args...)),
		"method", "Validate", "validate method parameters")
}
