package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastCfg keeps test runtimes low; jitter off for predictable timing.
func fastCfg(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastCfg(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastCfg(3), func() error {
		attempts++
		return errors.New("still broken")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestDo_NonRetryableShortCircuits(t *testing.T) {
	sentinel := errors.New("bad request")
	attempts := 0
	err := Do(context.Background(), fastCfg(5), func() error {
		attempts++
		return NonRetryable(sentinel)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, IsNonRetryable(err))
	assert.ErrorIs(t, err, sentinel)
}

func TestNonRetryable_NilPassesThrough(t *testing.T) {
	assert.NoError(t, NonRetryable(nil))
	assert.False(t, IsNonRetryable(nil))
	assert.False(t, IsNonRetryable(errors.New("plain")))
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		AddJitter:    false,
	}

	attempts := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("not yet")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Less(t, attempts, 5)
}

func TestDo_BackoffTiming(t *testing.T) {
	start := time.Now()
	attempts := 0
	_ = Do(context.Background(), fastCfg(4), func() error {
		attempts++
		return errors.New("nope")
	})
	elapsed := time.Since(start)

	// Delays 10ms, 20ms, 40ms between the four attempts.
	assert.GreaterOrEqual(t, elapsed, 70*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
	assert.Equal(t, 4, attempts)
}

func TestDo_MaxDelayCapsGrowth(t *testing.T) {
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     25 * time.Millisecond,
		Multiplier:   10.0,
		AddJitter:    false,
	}

	start := time.Now()
	_ = Do(context.Background(), cfg, func() error {
		return errors.New("nope")
	})
	elapsed := time.Since(start)

	// Delays 10ms, then capped at 25ms twice.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{MaxAttempts: 0}, func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_RejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative initial delay", Config{InitialDelay: -time.Second}},
		{"negative max delay", Config{MaxDelay: -time.Second}},
		{"negative multiplier", Config{Multiplier: -1}},
		{"max below initial", Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			err := Do(context.Background(), tc.cfg, func() error {
				called = true
				return nil
			})
			require.Error(t, err)
			assert.False(t, called)
		})
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), fastCfg(3), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("not ready")
		}
		return "ready", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ready", result)
	assert.Equal(t, 3, attempts)
}

func TestConfigPresets(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, 3, def.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, def.InitialDelay)
	assert.Equal(t, 5*time.Second, def.MaxDelay)
	assert.True(t, def.AddJitter)

	quick := Quick()
	assert.Equal(t, 10, quick.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, quick.InitialDelay)
	assert.Equal(t, time.Second, quick.MaxDelay)
}
