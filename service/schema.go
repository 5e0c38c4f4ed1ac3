package service

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
)

// simulateRequestSchema is the wire contract for simulate payloads. Structural
// validation runs before decoding so a malformed request produces field-level
// messages instead of a Go unmarshal error. Physical range checks (split
// ratios, temperatures, ramp rates) stay with method resolution; the schema
// only rejects shapes the decoder could not represent.
const simulateRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "SimulateRequest",
	"type": "object",
	"required": ["method", "compounds"],
	"additionalProperties": false,
	"properties": {
		"method": {
			"type": "string",
			"minLength": 1
		},
		"compounds": {
			"type": "array",
			"minItems": 1,
			"maxItems": 200,
			"items": {
				"type": "string",
				"minLength": 1
			}
		},
		"overrides": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"injection_volume":     {"type": "number"},
				"injection_type":       {"type": "string"},
				"injection_mode":       {"type": "string"},
				"split_ratio":          {"type": "number"},
				"inlet_temperature":    {"type": "number"},
				"matrix":               {"type": "string"},
				"column_length":        {"type": "number"},
				"inner_diameter":       {"type": "number"},
				"film_thickness":       {"type": "number"},
				"carrier_gas":          {"type": "string"},
				"carrier_flow":         {"type": "number"},
				"oven_initial_temp":    {"type": "number"},
				"oven_initial_hold":    {"type": "number"},
				"oven_ramps": {
					"type": "array",
					"maxItems": 10,
					"items": {
						"type": "object",
						"required": ["rate", "target"],
						"additionalProperties": false,
						"properties": {
							"rate":   {"type": "number"},
							"target": {"type": "number"},
							"hold":   {"type": "number"}
						}
					}
				},
				"detector_temperature": {"type": "number"},
				"detector_gas_flows": {
					"type": "object",
					"additionalProperties": {"type": "number"}
				},
				"pmt_voltage":          {"type": "number"}
			}
		}
	}
}`

var simulateSchema = mustCompileSchema(simulateRequestSchema)

// mustCompileSchema panics when the embedded schema constant does not compile.
// The schema is source code; a compile failure is a programming error caught
// by any test that imports the package.
func mustCompileSchema(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("service: embedded schema does not compile: %v", err))
	}
	return schema
}

// validateSimulateRequest checks raw against the simulate request schema and
// reports every violation in a single invalid-class error.
func validateSimulateRequest(raw []byte) error {
	result, err := simulateSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		// Not parseable as JSON at all.
		return errors.WrapInvalid(errors.ErrParsingFailed, "simulation-service", "validate", err.Error())
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errors.WrapInvalid(errors.ErrSchemaFailed, "simulation-service", "validate", strings.Join(issues, "; "))
}
