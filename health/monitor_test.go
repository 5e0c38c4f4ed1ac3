package health

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateAndGet(t *testing.T) {
	monitor := NewMonitor()

	_, exists := monitor.Get("simulation")
	assert.False(t, exists)

	monitor.Update("simulation", Status{Status: StateHealthy, Message: "processing requests"})

	status, exists := monitor.Get("simulation")
	require.True(t, exists)
	assert.Equal(t, "simulation", status.Component, "Update stamps the registered name")
	assert.Equal(t, StateHealthy, status.Status)
	assert.False(t, status.Timestamp.IsZero(), "Update stamps a timestamp when missing")
}

func TestMonitor_UpdateOverridesComponentName(t *testing.T) {
	monitor := NewMonitor()

	monitor.Update("runstore", Status{Component: "wrong-name", Status: StateHealthy})

	status, exists := monitor.Get("runstore")
	require.True(t, exists)
	assert.Equal(t, "runstore", status.Component)
}

func TestMonitor_ConvenienceUpdates(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("simulation", "processing requests")
	monitor.UpdateDegraded("nats", "reconnecting to broker")
	monitor.UpdateUnhealthy("runstore", "bucket unreachable")

	sim, _ := monitor.Get("simulation")
	assert.True(t, sim.IsHealthy())

	nats, _ := monitor.Get("nats")
	assert.True(t, nats.IsDegraded())
	assert.Equal(t, "reconnecting to broker", nats.Message)

	store, _ := monitor.Get("runstore")
	assert.True(t, store.IsUnhealthy())
}

func TestMonitor_GetAllIsCopy(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("simulation", "processing requests")

	all := monitor.GetAll()
	require.Len(t, all, 1)

	// Mutating the returned map must not touch tracked state.
	delete(all, "simulation")
	assert.Equal(t, 1, monitor.Count())
}

func TestMonitor_AggregateHealth(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("simulation", "processing requests")
	monitor.UpdateHealthy("gateway", "serving")
	monitor.UpdateDegraded("nats", "reconnecting to broker")

	system := monitor.AggregateHealth("intellilab-gc")
	assert.True(t, system.IsDegraded())
	assert.Equal(t, "intellilab-gc", system.Component)

	names := make([]string, 0, len(system.SubStatuses))
	for _, sub := range system.SubStatuses {
		names = append(names, sub.Component)
	}
	assert.Equal(t, []string{"gateway", "nats", "simulation"}, names,
		"sub-statuses sorted for stable serialized output")

	monitor.UpdateUnhealthy("runstore", "bucket unreachable")
	assert.True(t, monitor.AggregateHealth("intellilab-gc").IsUnhealthy())
}

func TestMonitor_AggregateHealth_Empty(t *testing.T) {
	monitor := NewMonitor()

	system := monitor.AggregateHealth("intellilab-gc")
	assert.True(t, system.IsHealthy())
	assert.Empty(t, system.SubStatuses)
}

func TestMonitor_RemoveAndList(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("simulation", "ok")
	monitor.UpdateHealthy("gateway", "ok")

	assert.Equal(t, []string{"gateway", "simulation"}, monitor.ListComponents())

	monitor.Remove("gateway")
	assert.Equal(t, 1, monitor.Count())
	assert.Equal(t, []string{"simulation"}, monitor.ListComponents())

	// Removing an unknown component is a no-op.
	monitor.Remove("gateway")
	assert.Equal(t, 1, monitor.Count())
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	monitor := NewMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		name := fmt.Sprintf("component-%d", i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				monitor.UpdateHealthy(name, "ok")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				monitor.AggregateHealth("intellilab-gc")
				monitor.GetAll()
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent monitor access did not finish")
	}

	assert.Equal(t, 8, monitor.Count())
}
