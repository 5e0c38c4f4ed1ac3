package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseServiceLifecycle(t *testing.T) {
	svc := NewBaseService("test", nil, WithHealthInterval(0))
	assert.Equal(t, StatusStopped, svc.Status())
	assert.Equal(t, "test", svc.Name())

	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, StatusRunning, svc.Status())

	// Starting a running service is a no-op.
	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, StatusRunning, svc.Status())

	require.NoError(t, svc.Stop(time.Second))
	assert.Equal(t, StatusStopped, svc.Status())

	// Stopping a stopped service is a no-op.
	require.NoError(t, svc.Stop(time.Second))
}

func TestBaseServiceRestart(t *testing.T) {
	svc := NewBaseService("test", nil, WithHealthInterval(0))

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop(time.Second))
	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, StatusRunning, svc.Status())
	require.NoError(t, svc.Stop(time.Second))
}

func TestBaseServiceHealthCheck(t *testing.T) {
	var failing atomic.Bool
	svc := NewBaseService("test", nil,
		WithHealthInterval(10*time.Millisecond),
		WithHealthCheck(func() error {
			if failing.Load() {
				return errors.New("probe failed")
			}
			return nil
		}),
	)

	require.NoError(t, svc.Start(context.Background()))
	defer func() { _ = svc.Stop(time.Second) }()

	assert.Eventually(t, svc.IsHealthy, time.Second, 5*time.Millisecond)
	assert.True(t, svc.Health().IsHealthy())

	failing.Store(true)
	assert.Eventually(t, func() bool { return !svc.IsHealthy() }, time.Second, 5*time.Millisecond)
	assert.True(t, svc.Health().IsUnhealthy())

	info := svc.GetStatus()
	assert.Greater(t, info.HealthChecks, int64(0))
	assert.Greater(t, info.FailedHealthChecks, int64(0))
}

func TestBaseServiceHealthChangeCallback(t *testing.T) {
	flips := make(chan bool, 4)
	var failing atomic.Bool
	svc := NewBaseService("test", nil,
		WithHealthInterval(10*time.Millisecond),
		WithHealthCheck(func() error {
			if failing.Load() {
				return errors.New("probe failed")
			}
			return nil
		}),
		OnHealthChange(func(healthy bool) { flips <- healthy }),
	)

	require.NoError(t, svc.Start(context.Background()))
	defer func() { _ = svc.Stop(time.Second) }()

	select {
	case healthy := <-flips:
		assert.True(t, healthy)
	case <-time.After(time.Second):
		t.Fatal("no health transition reported")
	}

	failing.Store(true)
	select {
	case healthy := <-flips:
		assert.False(t, healthy)
	case <-time.After(time.Second):
		t.Fatal("unhealthy transition not reported")
	}
}

func TestBaseServiceContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := NewBaseService("test", nil, WithHealthInterval(0))

	require.NoError(t, svc.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		return svc.Status() == StatusStopped
	}, time.Second, 5*time.Millisecond)
}

func TestBaseServiceCounters(t *testing.T) {
	svc := NewBaseService("test", nil, WithHealthInterval(0))
	require.NoError(t, svc.Start(context.Background()))
	defer func() { _ = svc.Stop(time.Second) }()

	svc.RecordRun()
	svc.RecordRun()

	info := svc.GetStatus()
	assert.Equal(t, "test", info.Name)
	assert.Equal(t, StatusRunning, info.Status)
	assert.Equal(t, int64(2), info.RunsProcessed)
	assert.False(t, info.LastActivity.IsZero())
	assert.False(t, info.StartTime.IsZero())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "stopped", StatusStopped.String())
	assert.Equal(t, "starting", StatusStarting.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "stopping", StatusStopping.String())
	assert.Equal(t, "unknown", Status(99).String())
}
