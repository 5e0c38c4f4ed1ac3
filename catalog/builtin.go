package catalog

// Built-in compound table: n-alkanes C6–C20, BTEX aromatics and the common
// sulfur heterocycles. Boiling points (°C) and molecular weights (g/mol) from
// the NIST Chemistry WebBook; nominal concentrations reflect typical
// multi-component standards (100 µg/mL hydrocarbon, 50 µg/mL sulfur mixes).

// defaultResponseFactors derives per-family response factors from elemental
// composition. FID response tracks carbon number normalized so n-decane
// reads 1.0; SCD is equimolar per sulfur atom and exactly zero for
// sulfur-free compounds; ECD response for these analyte classes is weak;
// TCD is a near-universal thermal response rising slowly with molecular
// weight.
func defaultResponseFactors(mw float64, carbonAtoms, sulfurAtoms int) map[DetectorFamily]float64 {
	return map[DetectorFamily]float64{
		FID: float64(carbonAtoms) / 10.0,
		SCD: float64(sulfurAtoms),
		ECD: 0.01 + 0.04*float64(sulfurAtoms),
		TCD: 0.15 + mw/1000.0,
	}
}

func builtin(name, cas, formula string, mw, bp, conc float64, carbonAtoms, sulfurAtoms int) Compound {
	return Compound{
		Name:            name,
		CAS:             cas,
		Formula:         formula,
		MolecularWeight: mw,
		BoilingPoint:    bp,
		Concentration:   conc,
		CarbonAtoms:     carbonAtoms,
		SulfurAtoms:     sulfurAtoms,
		ResponseFactors: defaultResponseFactors(mw, carbonAtoms, sulfurAtoms),
	}
}

var builtinCompounds = []Compound{
	builtin("n-Hexane", "110-54-3", "C6H14", 86.18, 68.7, 100.0, 6, 0),
	builtin("Benzene", "71-43-2", "C6H6", 78.11, 80.1, 100.0, 6, 0),
	builtin("Thiophene", "110-02-1", "C4H4S", 84.14, 84.2, 50.0, 4, 1),
	builtin("n-Heptane", "142-82-5", "C7H16", 100.21, 98.4, 100.0, 7, 0),
	builtin("Toluene", "108-88-3", "C7H8", 92.14, 110.6, 100.0, 7, 0),
	builtin("2-Methylthiophene", "554-14-3", "C5H6S", 98.17, 112.6, 50.0, 5, 1),
	builtin("n-Octane", "111-65-9", "C8H18", 114.23, 125.7, 100.0, 8, 0),
	builtin("Ethylbenzene", "100-41-4", "C8H10", 106.17, 136.2, 100.0, 8, 0),
	builtin("Xylene", "106-42-3", "C8H10", 106.17, 138.4, 100.0, 8, 0),
	builtin("n-Nonane", "111-84-2", "C9H20", 128.26, 150.8, 100.0, 9, 0),
	builtin("n-Decane", "124-18-5", "C10H22", 142.29, 174.2, 100.0, 10, 0),
	builtin("n-Dodecane", "112-40-3", "C12H26", 170.34, 216.3, 100.0, 12, 0),
	builtin("Benzothiophene", "95-15-8", "C8H6S", 134.20, 221.0, 50.0, 8, 1),
	builtin("n-Tetradecane", "629-59-4", "C14H30", 198.39, 253.6, 100.0, 14, 0),
	builtin("n-Hexadecane", "544-76-3", "C16H34", 226.45, 287.0, 100.0, 16, 0),
	builtin("n-Octadecane", "593-45-3", "C18H38", 254.50, 316.1, 100.0, 18, 0),
	builtin("Dibenzothiophene", "132-65-0", "C12H8S", 184.26, 332.5, 50.0, 12, 1),
	builtin("n-Eicosane", "112-95-8", "C20H42", 282.55, 343.8, 100.0, 20, 0),
}
