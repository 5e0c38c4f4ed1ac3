// Package simulation implements the GC method simulation pipeline: inlet
// transfer and split discrimination, chromatographic separation, detector
// response, backflush advice, method-level performance scoring and rule-based
// optimization recommendations, driven in order by a Pipeline orchestrator.
//
// The pipeline is a pure function of its inputs. A Pipeline value holds only
// read-only references (compound catalog, method library, optional metrics),
// so concurrent Run calls need no locking and identical requests always
// produce identical Results, byte for byte once serialized. Stage functions
// are exported individually; each consumes plain method/catalog values and
// returns plain data, which keeps them independently testable with fixture
// inputs.
//
// Request validation (unknown template, unknown compounds, out-of-domain
// overrides) completes before any stage executes and fails with
// invalid-class errors. An internal numeric fault inside a stage surfaces as
// a fatal-class stage computation error caught at the orchestrator boundary:
// no partial Result, no process crash.
package simulation
