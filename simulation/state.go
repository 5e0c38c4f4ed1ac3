package simulation

// State identifies where a run is in the pipeline sequence. Transitions are
// strictly linear with no branching or retry; any failure moves directly to
// StateFailed.
type State int

const (
	// StateResolving covers template resolution, override application and
	// compound lookup. Every validation error surfaces here, before any
	// stage executes.
	StateResolving State = iota
	// StateInjecting is the inlet transfer stage.
	StateInjecting
	// StateSeparating is the column separation stage.
	StateSeparating
	// StateDetecting is the detector response stage.
	StateDetecting
	// StateBackflushing is backflush advice.
	StateBackflushing
	// StateScoring is performance aggregation.
	StateScoring
	// StateRecommending is recommendation rule evaluation.
	StateRecommending
	// StateDone is the successful terminal state.
	StateDone
	// StateFailed is the terminal state after any error. No partial
	// result accompanies it.
	StateFailed
)

// String returns the state name for logs and stage metrics.
func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateInjecting:
		return "injecting"
	case StateSeparating:
		return "separating"
	case StateDetecting:
		return "detecting"
	case StateBackflushing:
		return "backflushing"
	case StateScoring:
		return "scoring"
	case StateRecommending:
		return "recommending"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
