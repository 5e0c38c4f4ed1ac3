package runstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/simulation"
)

// RunStatus is the terminal outcome of a simulation run.
type RunStatus string

// A run either produced a Result or an error; there is no in-progress
// record. Progress is observable on the event stream, the store only keeps
// what happened.
const (
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Record captures one finished simulation run: the request as submitted,
// the outcome, and enough bookkeeping to list and audit it later. Records
// are immutable once saved.
type Record struct {
	// ID is the run identifier, a UUID minted when the request was
	// accepted. Events about the run carry the same ID.
	ID string `json:"id"`

	Status RunStatus `json:"status"`

	// Source names the entry point that accepted the request, such as
	// "gateway" or "nats".
	Source string `json:"source,omitempty"`

	Request simulation.Request `json:"request"`

	// Result is set for completed runs, Error for failed ones.
	Result *simulation.Result `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`

	CreatedAt time.Time     `json:"created_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// IndexEntry is the listing summary kept in the run index. It carries what
// a history view needs without fetching whole records.
type IndexEntry struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	Status    RunStatus `json:"status"`
	Score     float64   `json:"score"`
	Compounds int       `json:"compounds"`
	Warnings  int       `json:"warnings"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRunID mints a run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewCompleted builds a record for a run that produced a result.
func NewCompleted(id, source string, req simulation.Request, res *simulation.Result, elapsed time.Duration) *Record {
	return &Record{
		ID:        id,
		Status:    StatusCompleted,
		Source:    source,
		Request:   req,
		Result:    res,
		CreatedAt: time.Now(),
		Elapsed:   elapsed,
	}
}

// NewFailed builds a record for a run that ended in an error.
func NewFailed(id, source string, req simulation.Request, runErr error, elapsed time.Duration) *Record {
	msg := "simulation failed"
	if runErr != nil {
		msg = runErr.Error()
	}
	return &Record{
		ID:        id,
		Status:    StatusFailed,
		Source:    source,
		Request:   req,
		Error:     msg,
		CreatedAt: time.Now(),
		Elapsed:   elapsed,
	}
}

// Validate checks that the record is storable.
func (r *Record) Validate() error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "Validate",
			fmt.Sprintf("parse run id %q as UUID", r.ID))
	}
	if r.Request.Method == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "Validate",
			"require request method")
	}
	if r.CreatedAt.IsZero() {
		return errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "Validate",
			"require created_at timestamp")
	}

	switch r.Status {
	case StatusCompleted:
		if r.Result == nil {
			return errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "Validate",
				"require result on completed run")
		}
	case StatusFailed:
		if r.Error == "" {
			return errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "Validate",
				"require error on failed run")
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "RunStore", "Validate",
			fmt.Sprintf("unknown run status %q", r.Status))
	}

	return nil
}

// Summary reduces the record to its index entry. Failed runs summarize the
// request side since they have no result.
func (r *Record) Summary() IndexEntry {
	entry := IndexEntry{
		ID:        r.ID,
		Method:    r.Request.Method,
		Status:    r.Status,
		Compounds: len(r.Request.Compounds),
		CreatedAt: r.CreatedAt,
	}
	if r.Result != nil {
		entry.Score = r.Result.Performance.Score
		entry.Compounds = len(r.Result.Compounds)
		entry.Warnings = len(r.Result.Warnings)
	}
	return entry
}
