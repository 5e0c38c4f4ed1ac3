package service

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unknown template",
			err:  errors.WrapInvalid(errors.ErrUnknownTemplate, "Library", "Resolve", "resolve template"),
			want: CodeUnknownTemplate,
		},
		{
			name: "unknown compound",
			err:  errors.WrapInvalid(errors.ErrUnknownCompound, "catalog", "Resolve", "resolve compounds"),
			want: CodeUnknownCompound,
		},
		{
			name: "invalid override",
			err:  errors.WrapInvalid(errors.ErrInvalidOverride, "Overrides", "Validate", "validate overrides"),
			want: CodeInvalidOverride,
		},
		{
			name: "run not found",
			err:  errors.WrapInvalid(errors.ErrRunNotFound, "RunStore", "Get", "load run"),
			want: CodeRunNotFound,
		},
		{
			name: "stage failure",
			err:  errors.WrapFatal(errors.ErrStageComputation, "Pipeline", "Run", "run stage"),
			want: CodeStageFailure,
		},
		{
			name: "generic invalid",
			err:  errors.WrapInvalid(errors.ErrInvalidData, "SimulationService", "runs.get", "require run id"),
			want: CodeBadRequest,
		},
		{
			name: "generic fatal",
			err:  errors.WrapFatal(fmt.Errorf("corrupted state"), "Pipeline", "Run", "assemble result"),
			want: CodeInternal,
		},
		{
			name: "transient",
			err:  errors.WrapTransient(errors.ErrStorageUnavailable, "RunStore", "Save", "save record"),
			want: CodeUnavailable,
		},
		{
			name: "unclassified defaults to unavailable",
			err:  fmt.Errorf("plain error"),
			want: CodeUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ErrorCode(tc.err))
		})
	}
}

func TestOKReply(t *testing.T) {
	raw := okReply(map[string]string{"hello": "world"})

	var reply Reply
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.True(t, reply.OK)
	assert.Nil(t, reply.Error)

	var data map[string]string
	require.NoError(t, json.Unmarshal(reply.Data, &data))
	assert.Equal(t, "world", data["hello"])
}

func TestOKReplyUnencodablePayload(t *testing.T) {
	raw := okReply(map[string]any{"bad": func() {}})

	var reply Reply
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.False(t, reply.OK)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeInternal, reply.Error.Code)
}

func TestErrReply(t *testing.T) {
	err := errors.WrapInvalid(errors.ErrUnknownTemplate, "Library", "Resolve", "resolve template")
	raw := errReply(err)

	var reply Reply
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.False(t, reply.OK)
	assert.Empty(t, reply.Data)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeUnknownTemplate, reply.Error.Code)
	assert.Equal(t, "invalid", reply.Error.Class)
	assert.Contains(t, reply.Error.Message, "unknown method template")
}
