package artifact

import (
	"context"
	"fmt"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/logger"
)

const healthKey = ".health"

// Component manages a Store's lifecycle for bootstrap.
type Component struct {
	cfg   Config
	log   *logger.Logger
	store Store
}

// NewComponent creates an artifact component. The store is opened on Start.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Component{cfg: cfg, log: log}
}

// Store returns the open store, or nil before Start.
func (c *Component) Store() Store { return c.store }

var (
	_ component.Managed     = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Name implements component.Managed.
func (c *Component) Name() string { return "artifacts" }

// Start opens the configured backend.
func (c *Component) Start(_ context.Context) error {
	s, err := Open(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("artifacts start: %w", err)
	}
	c.store = s
	return nil
}

// Stop closes the store.
func (c *Component) Stop(_ context.Context) error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

// Health checks the store with a List call.
func (c *Component) Health(ctx context.Context) component.Health {
	if c.store == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "store not open"}
	}
	if _, err := c.store.List(ctx, healthKey); err != nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: fmt.Sprintf("health check failed: %v", err),
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("backend=%s path=%s", c.cfg.Backend, c.cfg.Path)
	if c.cfg.InMemory {
		details = fmt.Sprintf("backend=%s in-memory", c.cfg.Backend)
	}
	return component.Description{Name: "Artifacts", Type: "storage", Details: details}
}
