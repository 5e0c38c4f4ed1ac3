// Package service provides lifecycle management for the platform's
// long-running services and the simulation service that answers NATS
// request/reply traffic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/config"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/health"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/natsclient"
)

// Status represents the lifecycle state of a service.
type Status int

// Lifecycle states.
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Info holds runtime information for a service.
type Info struct {
	Name               string        `json:"name"`
	Status             Status        `json:"status"`
	Uptime             time.Duration `json:"uptime"`
	StartTime          time.Time     `json:"start_time"`
	RunsProcessed      int64         `json:"runs_processed"`
	LastActivity       time.Time     `json:"last_activity"`
	HealthChecks       int64         `json:"health_checks"`
	FailedHealthChecks int64         `json:"failed_health_checks"`
}

// HealthCheckFunc is a service-specific health probe. A nil return means
// healthy.
type HealthCheckFunc func() error

// Option configures a BaseService.
type Option func(*BaseService)

// BaseService provides the lifecycle, health-ticker, and counter plumbing
// that concrete services embed.
type BaseService struct {
	name            string
	config          *config.Config
	nats            *natsclient.Client
	metricsRegistry *metric.MetricsRegistry
	logger          *slog.Logger

	status    atomic.Value // Status
	startTime atomic.Value // time.Time
	healthy   atomic.Bool

	runsProcessed      atomic.Int64
	healthChecks       atomic.Int64
	failedHealthChecks atomic.Int64
	lastActivity       atomic.Value // time.Time

	healthCheckFunc HealthCheckFunc
	healthTicker    *time.Ticker
	healthInterval  time.Duration
	onHealthChange  func(bool)

	done      chan struct{}
	waitGroup sync.WaitGroup
	mu        sync.RWMutex
}

// NewBaseService creates a base service with functional options applied.
func NewBaseService(name string, cfg *config.Config, opts ...Option) *BaseService {
	s := &BaseService{
		name:           name,
		config:         cfg,
		healthInterval: 30 * time.Second,
		logger:         slog.Default().With("service", name),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.status.Store(StatusStopped)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(name, int(StatusStopped))
	}
	s.startTime.Store(time.Time{})
	s.lastActivity.Store(time.Time{})

	return s
}

// WithNATS sets the NATS client whose connection state feeds the default
// health check.
func WithNATS(client *natsclient.Client) Option {
	return func(s *BaseService) {
		s.nats = client
	}
}

// WithMetrics sets the metrics registry for service status reporting.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *BaseService) {
		s.metricsRegistry = registry
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *BaseService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHealthCheck sets a service-specific health probe.
func WithHealthCheck(fn HealthCheckFunc) Option {
	return func(s *BaseService) {
		s.healthCheckFunc = fn
	}
}

// WithHealthInterval sets the health check interval. Zero disables the
// ticker entirely.
func WithHealthInterval(interval time.Duration) Option {
	return func(s *BaseService) {
		s.healthInterval = interval
	}
}

// OnHealthChange sets a callback invoked when the health state flips.
func OnHealthChange(fn func(bool)) Option {
	return func(s *BaseService) {
		s.onHealthChange = fn
	}
}

// Name returns the service name.
func (s *BaseService) Name() string {
	return s.name
}

// Status returns the current lifecycle state.
func (s *BaseService) Status() Status {
	return s.status.Load().(Status)
}

// IsHealthy reports the outcome of the most recent health check.
func (s *BaseService) IsHealthy() bool {
	return s.healthy.Load()
}

// Logger returns the service logger.
func (s *BaseService) Logger() *slog.Logger {
	return s.logger
}

// RecordRun notes one completed unit of work for the activity counters.
func (s *BaseService) RecordRun() {
	s.runsProcessed.Add(1)
	s.lastActivity.Store(time.Now())
}

// Health reports the service state in the platform health model. A running
// service answers with its operating counters attached; lifecycle
// transitions report degraded without them. Embedding services with richer
// failure context should override this.
func (s *BaseService) Health() health.Status {
	switch s.Status() {
	case StatusStarting:
		return health.NewDegraded(s.name, "service is starting")
	case StatusStopping:
		return health.NewDegraded(s.name, "service is stopping")
	case StatusRunning:
	default:
		return health.NewUnhealthy(s.name, "service is stopped")
	}

	info := s.GetStatus()
	snap := health.Snapshot{
		Healthy:       s.healthy.Load(),
		Uptime:        info.Uptime,
		ErrorCount:    int(info.FailedHealthChecks),
		RunsProcessed: info.RunsProcessed,
		LastActivity:  info.LastActivity,
	}
	if !snap.Healthy {
		snap.LastError = fmt.Sprintf("health checks failing (%d failed)", info.FailedHealthChecks)
	}
	return health.FromSnapshot(s.name, snap)
}

// Start transitions the service to running and launches the health monitor
// and context watcher. Starting a running service is a no-op.
func (s *BaseService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.Status()
	if current == StatusRunning || current == StatusStarting {
		return nil
	}

	s.setStatus(StatusStarting)
	s.done = make(chan struct{})

	now := time.Now()
	s.startTime.Store(now)
	s.lastActivity.Store(now)

	if s.healthInterval > 0 {
		s.healthTicker = time.NewTicker(s.healthInterval)
		s.waitGroup.Add(1)
		go s.healthMonitor(s.done, s.healthTicker)
	}

	go s.contextMonitor(ctx, s.done)

	s.setStatus(StatusRunning)
	return nil
}

// Stop shuts the service down, waiting up to timeout for its goroutines.
// Zero timeout means the five second default.
func (s *BaseService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(timeout)
}

func (s *BaseService) stopLocked(timeout time.Duration) error {
	current := s.Status()
	if current == StatusStopped || current == StatusStopping {
		return nil
	}

	s.setStatus(StatusStopping)

	if s.done != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
	if s.healthTicker != nil {
		s.healthTicker.Stop()
	}

	if timeout == 0 {
		timeout = 5 * time.Second
	}

	finished := make(chan struct{})
	go func() {
		s.waitGroup.Wait()
		close(finished)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-finished:
	case <-timer.C:
		s.logger.Warn("service goroutines did not finish before timeout", "timeout", timeout)
	}

	s.setStatus(StatusStopped)
	s.healthy.Store(false)
	return nil
}

// GetStatus returns a snapshot of the service counters.
func (s *BaseService) GetStatus() Info {
	startTime := s.startTime.Load().(time.Time)
	lastActivity := s.lastActivity.Load().(time.Time)

	uptime := time.Duration(0)
	if !startTime.IsZero() && s.Status() == StatusRunning {
		uptime = time.Since(startTime)
	}

	return Info{
		Name:               s.name,
		Status:             s.Status(),
		Uptime:             uptime,
		StartTime:          startTime,
		RunsProcessed:      s.runsProcessed.Load(),
		LastActivity:       lastActivity,
		HealthChecks:       s.healthChecks.Load(),
		FailedHealthChecks: s.failedHealthChecks.Load(),
	}
}

// RegisterMetrics registers service-specific metrics. The base has none;
// concrete services override this.
func (s *BaseService) RegisterMetrics(_ metric.MetricsRegistrar) error {
	return nil
}

func (s *BaseService) setStatus(status Status) {
	s.status.Store(status)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(status))
	}
}

// healthMonitor checks once immediately, then on every tick. It receives
// its generation's done channel and ticker so a later Start cannot cross
// wires with a monitor that has not exited yet.
func (s *BaseService) healthMonitor(done chan struct{}, ticker *time.Ticker) {
	defer s.waitGroup.Done()

	s.performHealthCheck()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.performHealthCheck()
		}
	}
}

func (s *BaseService) performHealthCheck() {
	s.healthChecks.Add(1)

	var err error
	if s.healthCheckFunc != nil {
		err = s.healthCheckFunc()
	}
	if err == nil && s.nats != nil && !s.nats.IsHealthy() {
		err = natsclient.ErrNotConnected
	}

	wasHealthy := s.healthy.Load()
	isHealthy := err == nil

	if err != nil {
		s.failedHealthChecks.Add(1)
	}
	s.healthy.Store(isHealthy)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordHealthStatus(s.name, isHealthy)
	}

	if wasHealthy != isHealthy && s.onHealthChange != nil {
		go s.onHealthChange(isHealthy)
	}
}

// contextMonitor mirrors parent context cancellation into a full stop. It
// guards on the done channel identity so a cancellation that arrives after
// a restart cannot stop the newer generation.
func (s *BaseService) contextMonitor(ctx context.Context, done chan struct{}) {
	select {
	case <-ctx.Done():
		s.mu.Lock()
		if s.done == done {
			_ = s.stopLocked(0)
		}
		s.mu.Unlock()
	case <-done:
	}
}

// Service is the contract every platform service satisfies.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Status() Status
	IsHealthy() bool
	GetStatus() Info
	Health() health.Status
	RegisterMetrics(registrar metric.MetricsRegistrar) error
}
