package health

import (
	"time"
)

// Health states reported by components. Status.Healthy is true only for
// StateHealthy; a degraded component keeps serving but is flagged false so
// that binary consumers err on the side of caution.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Status represents the health of one component, or of the whole instrument
// pipeline when it carries SubStatuses. It is a value type: WithMetrics and
// WithSubStatus return modified copies and never touch the receiver.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "degraded", "unhealthy"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics carries the operating counters a component reports alongside its
// health. RunsProcessed counts completed simulation runs for services that
// execute them, and 0 for components that do not.
type Metrics struct {
	Uptime        time.Duration `json:"uptime"`
	ErrorCount    int           `json:"error_count"`
	RunsProcessed int64         `json:"runs_processed,omitempty"`
	LastActivity  time.Time     `json:"last_activity,omitempty"`
}

// IsHealthy returns true if the status is healthy.
func (s Status) IsHealthy() bool {
	return s.Status == StateHealthy
}

// IsDegraded returns true if the status is degraded.
func (s Status) IsDegraded() bool {
	return s.Status == StateDegraded
}

// IsUnhealthy returns true if the status is unhealthy.
func (s Status) IsUnhealthy() bool {
	return s.Status == StateUnhealthy
}

// WithMetrics returns a copy of the status with metrics attached.
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithSubStatus returns a copy of the status with subStatus appended.
// The copy gets a fresh slice so the receiver's sub-statuses are never
// shared or mutated.
func (s Status) WithSubStatus(subStatus Status) Status {
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, subStatus)
	return s
}

// NewHealthy creates a healthy status for the named component.
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    StateHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a degraded status for the named component.
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Status:    StateDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates an unhealthy status for the named component.
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Status:    StateUnhealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate combines sub-statuses into one status using worst-case rules:
// any unhealthy sub-status makes the aggregate unhealthy, otherwise any
// degraded sub-status makes it degraded, otherwise it is healthy. A single
// failing stage must never be masked by the healthy ones around it.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "no components registered")
	}

	hasUnhealthy := false
	hasDegraded := false
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			hasUnhealthy = true
		case sub.IsDegraded():
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case hasUnhealthy:
		status = NewUnhealthy(component, "one or more components are unhealthy")
	case hasDegraded:
		status = NewDegraded(component, "one or more components are degraded")
	default:
		status = NewHealthy(component, "all components are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}

// Snapshot is the raw report a running component hands over when asked for
// its health: a binary up/down verdict plus operating counters. LastError
// is sanitized before it appears in any Status message, so callers can pass
// error text verbatim without leaking broker URLs or credentials.
type Snapshot struct {
	Healthy       bool
	LastError     string
	Uptime        time.Duration
	ErrorCount    int
	RunsProcessed int64
	LastActivity  time.Time
}

// FromSnapshot converts a component's Snapshot into a Status with metrics
// attached and the error message sanitized.
func FromSnapshot(name string, snap Snapshot) Status {
	state := StateUnhealthy
	if snap.Healthy {
		state = StateHealthy
	}

	message := "operating normally"
	if snap.LastError != "" {
		message = sanitizeErrorMessage(snap.LastError)
	} else if !snap.Healthy {
		message = "not operational"
	}

	return Status{
		Component: name,
		Healthy:   snap.Healthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
		Metrics: &Metrics{
			Uptime:        snap.Uptime,
			ErrorCount:    snap.ErrorCount,
			RunsProcessed: snap.RunsProcessed,
			LastActivity:  snap.LastActivity,
		},
	}
}
