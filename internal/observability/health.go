package observability

import (
	"context"
	"sync"
	"time"
)

// ComponentStatus represents the health status of a component.
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusUnhealthy ComponentStatus = "unhealthy"
)

// HealthCheck probes one component. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// ComponentHealth is the health report for a single component.
type ComponentHealth struct {
	Name        string          `json:"name"`
	Status      ComponentStatus `json:"status"`
	Message     string          `json:"message,omitempty"`
	LastChecked time.Time       `json:"last_checked"`
	LatencyMs   int64           `json:"latency_ms"`
}

// SystemHealth is the aggregate health of the entire system.
type SystemHealth struct {
	Status     ComponentStatus            `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"ts"`
	UptimeS    int64                      `json:"uptime_s"`
}

// HealthMonitor runs registered component checks on demand.
type HealthMonitor struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheck
	startTime time.Time
}

// NewHealthMonitor creates an empty health monitor.
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		checks:    make(map[string]HealthCheck),
		startTime: time.Now(),
	}
}

// Register adds a named health check.
func (m *HealthMonitor) Register(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Check runs all registered health checks and returns the aggregate
// system health. The system is unhealthy if any component is.
func (m *HealthMonitor) Check(ctx context.Context) SystemHealth {
	m.mu.RLock()
	checks := make(map[string]HealthCheck, len(m.checks))
	for name, fn := range m.checks {
		checks[name] = fn
	}
	startTime := m.startTime
	m.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(checks))
	worst := StatusHealthy

	for name, fn := range checks {
		start := time.Now()
		err := fn(ctx)

		h := ComponentHealth{
			Name:        name,
			Status:      StatusHealthy,
			LastChecked: time.Now(),
			LatencyMs:   time.Since(start).Milliseconds(),
		}
		if err != nil {
			h.Status = StatusUnhealthy
			h.Message = err.Error()
			worst = StatusUnhealthy
		}
		components[name] = h
	}

	return SystemHealth{
		Status:     worst,
		Components: components,
		Timestamp:  time.Now(),
		UptimeS:    int64(time.Since(startTime).Seconds()),
	}
}
