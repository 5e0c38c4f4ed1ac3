package method

import "github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"

// Built-in method templates. These mirror the workhorse configurations the
// platform ships with; site-specific methods are merged over them from YAML.
func builtinTemplates() []*Template {
	return []*Template{
		{
			Name:        "Petroleum_Hydrocarbons_C8_C40",
			Version:     "1.2.0",
			Description: "Boiling-range petroleum hydrocarbons C8–C40 on a thin-film nonpolar column",
			Injection: Injection{
				Volume:      1.0,
				Type:        Liquid,
				Mode:        Split,
				SplitRatio:  50.0,
				Temperature: 280.0,
				Matrix:      "Petroleum",
			},
			Column: Column{
				Length:        30.0,
				InnerDiameter: 0.32,
				FilmThickness: 0.25,
				Phase:         "DB-1",
				CarrierGas:    "Helium",
				FlowRate:      2.0,
			},
			Oven: OvenProgram{
				InitialTemp: 40.0,
				InitialHold: 2.0,
				Ramps: []Ramp{
					{Rate: 10.0, Target: 320.0, Hold: 5.0},
				},
			},
			Detector: Detector{
				Family:      catalog.FID,
				Temperature: 300.0,
				GasFlows:    map[string]float64{"H2": 30.0, "Air": 300.0, "Makeup": 25.0},
			},
		},
		{
			Name:        "BTEX_Aromatics",
			Version:     "1.0.1",
			Description: "BTEX monoaromatics in environmental extracts on a polar wax column",
			Injection: Injection{
				Volume:      1.0,
				Type:        Liquid,
				Mode:        Split,
				SplitRatio:  20.0,
				Temperature: 250.0,
				Matrix:      "Environmental_Water",
			},
			Column: Column{
				Length:        30.0,
				InnerDiameter: 0.25,
				FilmThickness: 0.5,
				Phase:         "DB-WAX",
				CarrierGas:    "Helium",
				FlowRate:      1.2,
			},
			Oven: OvenProgram{
				InitialTemp: 35.0,
				InitialHold: 4.0,
				Ramps: []Ramp{
					{Rate: 8.0, Target: 120.0},
					{Rate: 15.0, Target: 220.0, Hold: 2.0},
				},
			},
			Detector: Detector{
				Family:      catalog.FID,
				Temperature: 280.0,
				GasFlows:    map[string]float64{"H2": 30.0, "Air": 300.0, "Makeup": 25.0},
			},
		},
		{
			Name:        "Sulfur_Compounds_SCD",
			Version:     "1.1.0",
			Description: "Trace sulfur heterocycles by sulfur chemiluminescence, splitless injection",
			Injection: Injection{
				Volume:      1.0,
				Type:        Liquid,
				Mode:        Splitless,
				Temperature: 250.0,
				Matrix:      "Natural_Gas_Condensate",
			},
			Column: Column{
				Length:        60.0,
				InnerDiameter: 0.25,
				FilmThickness: 1.0,
				Phase:         "DB-1",
				CarrierGas:    "Helium",
				FlowRate:      1.5,
			},
			Oven: OvenProgram{
				InitialTemp: 35.0,
				InitialHold: 5.0,
				Ramps: []Ramp{
					{Rate: 10.0, Target: 250.0, Hold: 3.5},
				},
			},
			Detector: Detector{
				Family:      catalog.SCD,
				Temperature: 250.0,
				GasFlows:    map[string]float64{"H2": 40.0, "Air": 60.0},
				SCD:         &SCDParams{PMTVoltage: 800.0, BurnerTemperature: 800.0},
			},
		},
		{
			Name:        "Simulated_Distillation_HT",
			Version:     "2.0.0",
			Description: "High-temperature simulated distillation of heavy crude, cool on-column injection",
			Injection: Injection{
				Volume:      0.5,
				Type:        Liquid,
				Mode:        OnColumn,
				Temperature: 350.0,
				Matrix:      "Heavy_Crude",
			},
			Column: Column{
				Length:        10.0,
				InnerDiameter: 0.53,
				FilmThickness: 0.15,
				Phase:         "MXT-1",
				CarrierGas:    "Helium",
				FlowRate:      8.0,
			},
			Oven: OvenProgram{
				InitialTemp: 40.0,
				InitialHold: 1.0,
				Ramps: []Ramp{
					{Rate: 20.0, Target: 430.0, Hold: 5.0},
				},
			},
			Detector: Detector{
				Family:      catalog.FID,
				Temperature: 430.0,
				GasFlows:    map[string]float64{"H2": 40.0, "Air": 400.0, "Makeup": 20.0},
			},
		},
		{
			Name:        "Residual_Solvents_HS",
			Version:     "1.0.0",
			Description: "Residual solvents by static headspace on a thick-film volatiles column",
			Injection: Injection{
				Volume:      1000.0,
				Type:        Headspace,
				Mode:        Split,
				SplitRatio:  5.0,
				Temperature: 180.0,
				Matrix:      "Pharmaceutical",
			},
			Column: Column{
				Length:        30.0,
				InnerDiameter: 0.32,
				FilmThickness: 1.8,
				Phase:         "DB-624",
				CarrierGas:    "Helium",
				FlowRate:      1.8,
			},
			Oven: OvenProgram{
				InitialTemp: 40.0,
				InitialHold: 5.0,
				Ramps: []Ramp{
					{Rate: 10.0, Target: 240.0, Hold: 1.0},
				},
			},
			Detector: Detector{
				Family:      catalog.FID,
				Temperature: 260.0,
				GasFlows:    map[string]float64{"H2": 30.0, "Air": 300.0, "Makeup": 25.0},
			},
		},
	}
}
