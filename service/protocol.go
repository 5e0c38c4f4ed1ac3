package service

import (
	"encoding/json"
	stderrors "errors"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/runstore"
)

// Request/reply subjects answered by the simulation service, and the event
// subject it publishes to. The event subject is captured by the EventStream
// JetStream stream; the request subjects are plain core NATS.
const (
	SubjectPrefix        = "intellilab.gc.v1"
	SubjectSimulate      = SubjectPrefix + ".simulate"
	SubjectMethodsList   = SubjectPrefix + ".methods.list"
	SubjectCompoundsList = SubjectPrefix + ".compounds.list"
	SubjectRunsGet       = SubjectPrefix + ".runs.get"
	SubjectRunsList      = SubjectPrefix + ".runs.list"

	// SubjectRunCompleted carries one event per finished run. The stream
	// filter names this exact subject; a wildcard over "runs.>" would also
	// capture runs.get and runs.list request traffic.
	SubjectRunCompleted = SubjectPrefix + ".runs.completed"

	// EventStream is the JetStream stream that retains run events for
	// late-joining consumers.
	EventStream = "GC_EVENTS"
)

// Reply is the JSON envelope every request/reply subject answers with.
type Reply struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ReplyError     `json:"error,omitempty"`
}

// ReplyError describes a failed request. Class is the platform error class
// (transient, invalid, fatal); Code is a stable machine-readable reason.
type ReplyError struct {
	Code    string `json:"code"`
	Class   string `json:"class"`
	Message string `json:"message"`
}

// Error reason codes carried in ReplyError.Code.
const (
	CodeUnknownTemplate = "unknown_template"
	CodeUnknownCompound = "unknown_compound"
	CodeInvalidOverride = "invalid_override"
	CodeRunNotFound     = "run_not_found"
	CodeBadRequest      = "bad_request"
	CodeStageFailure    = "stage_failure"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

// ErrorCode maps an error to its wire reason code.
func ErrorCode(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrUnknownTemplate):
		return CodeUnknownTemplate
	case stderrors.Is(err, errors.ErrUnknownCompound):
		return CodeUnknownCompound
	case stderrors.Is(err, errors.ErrInvalidOverride):
		return CodeInvalidOverride
	case stderrors.Is(err, errors.ErrRunNotFound):
		return CodeRunNotFound
	case stderrors.Is(err, errors.ErrStageComputation):
		return CodeStageFailure
	}

	switch errors.Classify(err) {
	case errors.ErrorInvalid:
		return CodeBadRequest
	case errors.ErrorFatal:
		return CodeInternal
	default:
		return CodeUnavailable
	}
}

// okReply wraps a payload in a successful envelope. A payload that cannot
// marshal comes back as an internal error envelope instead.
func okReply(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return errReply(errors.WrapFatal(err, "SimulationService", "reply", "encode reply payload"))
	}
	out, err := json.Marshal(Reply{OK: true, Data: data})
	if err != nil {
		return errReply(errors.WrapFatal(err, "SimulationService", "reply", "encode reply envelope"))
	}
	return out
}

// errReply wraps an error in a failed envelope. The envelope itself always
// marshals: it is built from plain strings.
func errReply(err error) []byte {
	reply := Reply{
		OK: false,
		Error: &ReplyError{
			Code:    ErrorCode(err),
			Class:   errors.Classify(err).String(),
			Message: err.Error(),
		},
	}
	out, _ := json.Marshal(reply)
	return out
}

// RunsGetRequest asks for one run record by ID.
type RunsGetRequest struct {
	ID string `json:"id"`
}

// RunsListRequest asks for the most recent runs. Limit zero means all
// indexed runs.
type RunsListRequest struct {
	Limit int `json:"limit,omitempty"`
}

// SimulateResponse is the data payload for a simulate request.
type SimulateResponse struct {
	RunID  string          `json:"run_id"`
	Result json.RawMessage `json:"result"`
}

// RunCompleted is the event payload published on SubjectRunCompleted after
// every finished run, successful or failed.
type RunCompleted struct {
	runstore.IndexEntry
	Source string `json:"source,omitempty"`
}
