package method

// Overrides is the caller-supplied partial structure applied over a resolved
// template copy. Nil fields leave the template value untouched; the zero
// value overrides nothing. JSON field names are the request-layer contract.
type Overrides struct {
	// Injection
	InjectionVolume  *float64 `json:"injection_volume,omitempty"`
	InjectionType    *string  `json:"injection_type,omitempty"`
	InjectionMode    *string  `json:"injection_mode,omitempty"`
	SplitRatio       *float64 `json:"split_ratio,omitempty"`
	InletTemperature *float64 `json:"inlet_temperature,omitempty"`
	Matrix           *string  `json:"matrix,omitempty"`

	// Column
	ColumnLength  *float64 `json:"column_length,omitempty"`
	InnerDiameter *float64 `json:"inner_diameter,omitempty"`
	FilmThickness *float64 `json:"film_thickness,omitempty"`
	CarrierGas    *string  `json:"carrier_gas,omitempty"`
	CarrierFlow   *float64 `json:"carrier_flow,omitempty"`

	// Oven program. OvenRamps, when present, replaces the whole ramp table
	// rather than merging segment by segment.
	OvenInitialTemp *float64 `json:"oven_initial_temp,omitempty"`
	OvenInitialHold *float64 `json:"oven_initial_hold,omitempty"`
	OvenRamps       []Ramp   `json:"oven_ramps,omitempty"`

	// Detector. DetectorGasFlows merges gas by gas over the template's map.
	DetectorTemperature *float64           `json:"detector_temperature,omitempty"`
	DetectorGasFlows    map[string]float64 `json:"detector_gas_flows,omitempty"`
	PMTVoltage          *float64           `json:"pmt_voltage,omitempty"`
}

// apply copies every set override field onto the template. The template is
// expected to be a private clone; apply never validates, so the caller
// validates the combined result afterwards.
func (ov *Overrides) apply(t *Template) {
	if ov == nil {
		return
	}

	if ov.InjectionVolume != nil {
		t.Injection.Volume = *ov.InjectionVolume
	}
	if ov.InjectionType != nil {
		t.Injection.Type = InjectionType(*ov.InjectionType)
	}
	if ov.InjectionMode != nil {
		t.Injection.Mode = InjectionMode(*ov.InjectionMode)
	}
	if ov.SplitRatio != nil {
		t.Injection.SplitRatio = *ov.SplitRatio
	}
	if ov.InletTemperature != nil {
		t.Injection.Temperature = *ov.InletTemperature
	}
	if ov.Matrix != nil {
		t.Injection.Matrix = *ov.Matrix
	}

	if ov.ColumnLength != nil {
		t.Column.Length = *ov.ColumnLength
	}
	if ov.InnerDiameter != nil {
		t.Column.InnerDiameter = *ov.InnerDiameter
	}
	if ov.FilmThickness != nil {
		t.Column.FilmThickness = *ov.FilmThickness
	}
	if ov.CarrierGas != nil {
		t.Column.CarrierGas = *ov.CarrierGas
	}
	if ov.CarrierFlow != nil {
		t.Column.FlowRate = *ov.CarrierFlow
	}

	if ov.OvenInitialTemp != nil {
		t.Oven.InitialTemp = *ov.OvenInitialTemp
	}
	if ov.OvenInitialHold != nil {
		t.Oven.InitialHold = *ov.OvenInitialHold
	}
	if ov.OvenRamps != nil {
		t.Oven.Ramps = make([]Ramp, len(ov.OvenRamps))
		copy(t.Oven.Ramps, ov.OvenRamps)
	}

	if ov.DetectorTemperature != nil {
		t.Detector.Temperature = *ov.DetectorTemperature
	}
	if ov.DetectorGasFlows != nil {
		if t.Detector.GasFlows == nil {
			t.Detector.GasFlows = make(map[string]float64, len(ov.DetectorGasFlows))
		}
		for gas, flow := range ov.DetectorGasFlows {
			t.Detector.GasFlows[gas] = flow
		}
	}
	if ov.PMTVoltage != nil {
		if t.Detector.SCD == nil {
			// Validation rejects this afterwards unless the detector family
			// really is SCD.
			t.Detector.SCD = &SCDParams{BurnerTemperature: 800}
		}
		t.Detector.SCD.PMTVoltage = *ov.PMTVoltage
	}
}
