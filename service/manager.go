package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/config"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/health"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/pkg/retry"
)

// Manager creates services from registered constructors and drives their
// lifecycle. Services start in creation order and stop in reverse.
type Manager struct {
	registry *Registry
	deps     *Dependencies
	logger   *slog.Logger

	mu       sync.RWMutex
	services map[string]Service
	order    []string
}

// NewManager creates a manager over the given registry. The dependencies
// are handed to every constructor.
func NewManager(registry *Registry, deps *Dependencies) *Manager {
	logger := slog.Default()
	if deps != nil && deps.Logger != nil {
		logger = deps.Logger
	}
	return &Manager{
		registry: registry,
		deps:     deps,
		logger:   logger.With("component", "service-manager"),
		services: make(map[string]Service),
	}
}

// CreateService instantiates a registered service with its raw JSON config.
func (m *Manager) CreateService(name string, rawConfig []byte) (Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[name]; exists {
		return nil, fmt.Errorf("service %s already created", name)
	}

	constructor, exists := m.registry.Constructor(name)
	if !exists {
		return nil, fmt.Errorf("no constructor registered for service %s", name)
	}

	svc, err := constructor(rawConfig, m.deps)
	if err != nil {
		return nil, fmt.Errorf("create service %s: %w", name, err)
	}

	m.services[name] = svc
	m.order = append(m.order, name)
	return svc, nil
}

// CreateFromConfig instantiates every enabled service in the config map
// that has a registered constructor. Unknown names are an error; disabled
// entries are skipped.
func (m *Manager) CreateFromConfig(cfgs config.ServiceConfigs) error {
	// Sorted names give a deterministic creation and shutdown order.
	for _, name := range sortedKeys(cfgs) {
		sc := cfgs[name]
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("service config %s: %w", name, err)
		}
		if !sc.Enabled {
			m.logger.Debug("service disabled, skipping", "service", name)
			continue
		}
		if _, err := m.CreateService(name, sc.Config); err != nil {
			return err
		}
	}
	return nil
}

// GetService returns a created service by name.
func (m *Manager) GetService(name string) (Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	svc, exists := m.services[name]
	return svc, exists
}

// Services returns a copy of the created services keyed by name.
func (m *Manager) Services() map[string]Service {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Service, len(m.services))
	for name, svc := range m.services {
		out[name] = svc
	}
	return out
}

// StartAll starts every created service in creation order. The first
// failure aborts the sequence and is returned; already-started services
// keep running so the caller can stop them.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	order := append([]string(nil), m.order...)
	services := make(map[string]Service, len(m.services))
	for name, svc := range m.services {
		services[name] = svc
	}
	m.mu.RUnlock()

	for _, name := range order {
		m.logger.Debug("starting service", "service", name)
		if err := services[name].Start(ctx); err != nil {
			return fmt.Errorf("start service %s: %w", name, err)
		}
	}

	m.logger.Info("all services started", "count", len(order))
	return nil
}

// StopAll stops every service in reverse creation order, then clears the
// manager. All stop errors are collected and joined.
func (m *Manager) StopAll(timeout time.Duration) error {
	m.mu.Lock()
	order := append([]string(nil), m.order...)
	services := m.services
	m.services = make(map[string]Service)
	m.order = nil
	m.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		start := time.Now()
		if err := services[name].Stop(timeout); err != nil {
			m.logger.Error("service stop failed", "service", name, "error", err)
			errs = append(errs, fmt.Errorf("stop service %s: %w", name, err))
			continue
		}
		m.logger.Debug("service stopped", "service", name,
			"duration_ms", time.Since(start).Milliseconds())
	}
	return errors.Join(errs...)
}

// StartService creates and starts one service, retrying the start briefly
// so a dependency that is still coming up does not fail it outright.
func (m *Manager) StartService(ctx context.Context, name string, rawConfig []byte) error {
	if _, exists := m.GetService(name); exists {
		return nil
	}

	svc, err := m.CreateService(name, rawConfig)
	if err != nil {
		return err
	}

	startErr := retry.Do(ctx, retry.Quick(), func() error {
		return svc.Start(ctx)
	})
	if startErr != nil {
		m.RemoveService(name)
		return fmt.Errorf("start service %s: %w", name, startErr)
	}

	m.logger.Info("service started", "service", name)
	return nil
}

// StopService stops and removes one service. A missing name is not an
// error.
func (m *Manager) StopService(name string, timeout time.Duration) error {
	svc, exists := m.GetService(name)
	if !exists {
		return nil
	}

	err := svc.Stop(timeout)
	m.RemoveService(name)
	if err != nil {
		return fmt.Errorf("stop service %s: %w", name, err)
	}
	return nil
}

// RemoveService forgets a service without stopping it.
func (m *Manager) RemoveService(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[name]; !exists {
		return
	}
	delete(m.services, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Health aggregates the health of every managed service.
func (m *Manager) Health() health.Status {
	m.mu.RLock()
	services := make([]Service, 0, len(m.services))
	for _, svc := range m.services {
		services = append(services, svc)
	}
	m.mu.RUnlock()

	statuses := make([]health.Status, 0, len(services))
	for _, svc := range services {
		statuses = append(statuses, svc.Health())
	}
	return health.Aggregate("services", statuses)
}

func sortedKeys(cfgs config.ServiceConfigs) []string {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
