package component

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/recpipe/logger"
)

// HealthStatus represents the health state of a managed service.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a managed service.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Managed is a lifecycle-managed service such as a worker pool or an
// artifact store. It is unrelated to pipeline Components.
type Managed interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description holds summary information for the startup display.
type Description struct {
	// Name is the display name. If empty, Managed.Name() is used.
	Name string
	// Type categorizes the service: "pool", "store", "sink".
	Type string
	// Details is a one-liner such as "workers=4 mode=process".
	Details string
}

// Describable is optionally implemented by Managed services to self-report
// in the startup summary.
type Describable interface {
	Describe() Description
}

type managedEntry struct {
	svc     Managed
	started bool
}

// Manager starts services in registration order and stops them in reverse.
type Manager struct {
	entries []*managedEntry
	lookup  map[string]*managedEntry
	mu      sync.RWMutex
	// StopTimeout bounds each service's Stop call.
	StopTimeout time.Duration
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		entries:     make([]*managedEntry, 0),
		lookup:      make(map[string]*managedEntry),
		StopTimeout: 30 * time.Second,
	}
}

// Register adds a service. Register dependencies first.
func (m *Manager) Register(s Managed) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := s.Name()
	if _, exists := m.lookup[name]; exists {
		return fmt.Errorf("component %s already registered", name)
	}

	entry := &managedEntry{svc: s}
	m.entries = append(m.entries, entry)
	m.lookup[name] = entry

	logger.Debug("Component registered", map[string]interface{}{
		logger.FieldComponent: name,
	})
	return nil
}

// StartAll starts all services in registration order. It stops at the
// first failure; services already started stay started for StopAll.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.entries {
		if entry.started {
			continue
		}
		name := entry.svc.Name()

		logger.Debug("Starting component", map[string]interface{}{logger.FieldComponent: name})
		if err := entry.svc.Start(ctx); err != nil {
			logger.Error("Component start failed", map[string]interface{}{
				logger.FieldComponent: name,
				logger.FieldError:     err.Error(),
			})
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		entry.started = true
	}

	logger.Debug("All components started", map[string]interface{}{"count": len(m.entries)})
	return nil
}

// StopAll stops started services in reverse registration order.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := len(m.entries) - 1; i >= 0; i-- {
		entry := m.entries[i]
		if !entry.started {
			continue
		}

		name := entry.svc.Name()
		stopCtx, cancel := context.WithTimeout(ctx, m.StopTimeout)
		if err := entry.svc.Stop(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", name, err))
			logger.Error("Component stop failed", map[string]interface{}{
				logger.FieldComponent: name,
				logger.FieldError:     err.Error(),
			})
		} else {
			logger.Debug("Component stopped", map[string]interface{}{logger.FieldComponent: name})
		}
		entry.started = false
		cancel()
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// HealthAll returns health for all registered services.
func (m *Manager) HealthAll(ctx context.Context) []Health {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Health, 0, len(m.entries))
	for _, entry := range m.entries {
		results = append(results, entry.svc.Health(ctx))
	}
	return results
}

// Get returns a registered service by name, or nil.
func (m *Manager) Get(name string) Managed {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if entry, exists := m.lookup[name]; exists {
		return entry.svc
	}
	return nil
}

// All returns all registered services in registration order.
func (m *Manager) All() []Managed {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Managed, 0, len(m.entries))
	for _, entry := range m.entries {
		result = append(result, entry.svc)
	}
	return result
}
