package natsclient

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKVOptions(t *testing.T) {
	opts := DefaultKVOptions()

	assert.Equal(t, 10, opts.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, opts.RetryDelay)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, 1024*1024, opts.MaxValueSize)
	assert.True(t, opts.UseExponentialBackoff)
	assert.Equal(t, time.Second, opts.MaxRetryDelay)
}

func TestNewKVStore_Options(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	store := client.NewKVStore(nil, func(o *KVOptions) {
		o.MaxRetries = 3
		o.UseExponentialBackoff = false
	})

	cfg := store.getRetryConfig()
	assert.Equal(t, 4, cfg.MaxAttempts, "MaxRetries counts additional attempts")
	assert.Equal(t, 10*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, time.Second, cfg.MaxDelay)
	assert.True(t, cfg.AddJitter)
	assert.Equal(t, 1.0, cfg.Multiplier, "constant delay without exponential backoff")

	store = client.NewKVStore(nil)
	cfg = store.getRetryConfig()
	assert.Equal(t, 11, cfg.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestIsKVNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "sentinel", err: ErrKVKeyNotFound, want: true},
		{name: "wrapped sentinel", err: fmt.Errorf("load run: %w", ErrKVKeyNotFound), want: true},
		{name: "raw message", err: errors.New("nats: key not found"), want: true},
		{name: "api code", err: errors.New("API error 10037"), want: true},
		{name: "unrelated", err: errors.New("connection reset"), want: false},
		{name: "conflict is not not-found", err: ErrKVRevisionMismatch, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsKVNotFoundError(tt.err))
		})
	}
}

func TestIsKVConflictError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "revision sentinel", err: ErrKVRevisionMismatch, want: true},
		{name: "exists sentinel", err: ErrKVKeyExists, want: true},
		{name: "wrapped", err: fmt.Errorf("store run: %w", ErrKVKeyExists), want: true},
		{name: "wrong last sequence", err: errors.New("nats: wrong last sequence: 12"), want: true},
		{name: "api code 10071", err: errors.New("API error 10071"), want: true},
		{name: "api code 10058", err: errors.New("API error 10058"), want: true},
		{name: "not found is not conflict", err: ErrKVKeyNotFound, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsKVConflictError(tt.err))
		})
	}
}
