// Package worker provides a generic bounded worker pool.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
)

// Pool processes work items of type T on a fixed set of goroutines behind a
// bounded queue. Submit never blocks: when the queue is full the item is
// dropped and the caller told, so a slow consumer sheds load instead of
// backing up into request handling.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	workChan chan T
	stopCh   chan struct{}
	metrics  *poolMetrics
	wg       sync.WaitGroup

	// lifecycleMu is held shared by Submit and exclusively by Start/Stop,
	// so a submit can never race the queue closing.
	lifecycleMu sync.RWMutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Pool.
type Option[T any] func(*poolOptions)

type poolOptions struct {
	registry *metric.MetricsRegistry
	poolName string
}

// WithMetrics exports queue depth, utilization, and throughput counters for
// the pool, labeled with the given pool name.
func WithMetrics[T any](registry *metric.MetricsRegistry, poolName string) Option[T] {
	return func(o *poolOptions) {
		if registry != nil && poolName != "" {
			o.registry = registry
			o.poolName = poolName
		}
	}
}

// NewPool builds a pool of the given size. Workers and queue size fall back
// to sane defaults when non-positive; a nil processor is an error.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if processor == nil {
		return nil, ErrNilProcessor
	}
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	o := poolOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
		stopCh:    make(chan struct{}),
	}

	if o.registry != nil {
		m, err := newPoolMetrics(o.registry, o.poolName)
		if err != nil {
			return nil, err
		}
		p.metrics = m
	}

	return p, nil
}

// Start launches the workers. The context is handed to every processor call
// and cancelling it aborts workers without draining the queue; use Stop for
// a draining shutdown.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	if p.metrics != nil {
		p.wg.Add(1)
		go p.gaugeUpdater(ctx)
	}

	p.started = true
	return nil
}

// Submit queues a work item. Safe for concurrent use; returns ErrQueueFull
// when the queue is at capacity and the item was dropped.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.RLock()
	defer p.lifecycleMu.RUnlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.workChan <- work:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(len(p.workChan)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Stop closes the queue, lets the workers drain what is already queued, and
// waits up to timeout for them to finish. Submits arriving during the drain
// fail fast with ErrPoolStopped.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.workChan)
	close(p.stopCh)
	p.lifecycleMu.Unlock()

	// Wait outside the lock so pending submits error out instead of
	// blocking on it for the whole drain.
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns a snapshot of the pool counters. Processed counts every
// attempt; Failed is the subset whose processor returned an error.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

// PoolStats is a point-in-time view of pool activity.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}

			start := time.Now()
			err := p.processor(ctx, work)
			elapsed := time.Since(start)

			p.processed.Add(1)
			if err != nil {
				p.failed.Add(1)
			}

			if p.metrics != nil {
				p.metrics.processed.Inc()
				status := "success"
				if err != nil {
					p.metrics.failed.Inc()
					status = "error"
				}
				p.metrics.processingTime.WithLabelValues(status).Observe(elapsed.Seconds())
			}
		}
	}
}

// gaugeUpdater refreshes the depth and utilization gauges once a second. It
// watches stopCh as well as the context, so a draining Stop does not hang
// waiting for it.
func (p *Pool[T]) gaugeUpdater(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			depth := float64(len(p.workChan))
			p.metrics.queueDepth.Set(depth)
			p.metrics.utilization.Set(depth / float64(p.queueSize))
		}
	}
}

// poolMetrics holds the Prometheus collectors for one pool.
type poolMetrics struct {
	queueDepth     prometheus.Gauge
	utilization    prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

func newPoolMetrics(registry *metric.MetricsRegistry, poolName string) (*poolMetrics, error) {
	labels := prometheus.Labels{"pool": poolName}
	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "queue_depth",
			ConstLabels: labels,
			Help:        "Current number of queued work items",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Queue depth as a fraction of queue capacity",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "submitted_total",
			ConstLabels: labels,
			Help:        "Total work items accepted into the queue",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "processed_total",
			ConstLabels: labels,
			Help:        "Total work items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "failed_total",
			ConstLabels: labels,
			Help:        "Total work items whose processor returned an error",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "dropped_total",
			ConstLabels: labels,
			Help:        "Total work items dropped because the queue was full",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "worker",
			Name:        "processing_duration_seconds",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			Help:        "Time spent processing one work item",
		}, []string{"status"}),
	}

	if err := registry.RegisterGauge(poolName, "queue_depth", m.queueDepth); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(poolName, "utilization", m.utilization); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(poolName, "submitted_total", m.submitted); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(poolName, "processed_total", m.processed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(poolName, "failed_total", m.failed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(poolName, "dropped_total", m.dropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec(poolName, "processing_duration_seconds", m.processingTime); err != nil {
		return nil, err
	}

	return m, nil
}
