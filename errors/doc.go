// Package errors provides standardized error handling patterns for the
// IntelliLab GC platform.
//
// # Overview
//
// The package implements a three-class error classification system: Transient
// (temporary, retryable), Invalid (bad input, non-retryable), and Fatal
// (unrecoverable, stop the current operation). Classification lets callers
// make retry and escalation decisions without string matching on messages.
//
// The simulation pipeline maps its error taxonomy onto these classes:
//
//   - ErrUnknownTemplate, ErrUnknownCompound, ErrInvalidOverride: request
//     validation failures, classified Invalid; they fail a simulation before
//     any stage executes and carry enough detail for the caller to fix the
//     request.
//   - ErrStageComputation: an internal numeric fault inside a stage,
//     classified Fatal; it aborts the run with no partial result but never
//     crashes the process.
//
// Collaborator-layer conditions (NATS connectivity, run-history storage,
// configuration) use the remaining standard variables.
//
// # Wrapping
//
// All wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The generic Wrap() preserves the original error's classification through
// the chain. All error types support errors.Is, errors.As and Unwrap:
//
//	wrapped := errors.WrapInvalid(errors.ErrUnknownCompound, "Catalog", "Resolve", "lookup")
//	errors.Is(wrapped, errors.ErrUnknownCompound) // true
//	errors.IsInvalid(wrapped)                     // true
//
// Context errors (context.DeadlineExceeded, context.Canceled) are classified
// Transient so context-based timeouts in the collaborator layer are handled
// uniformly with network timeouts.
package errors
