package component

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/recpipe/errors"
)

// Factory creates a fresh, unconfigured component instance.
type Factory func() Component

// Registry maps component type ids to factories. It is populated once at
// process start; pipelines hold resolved instances, never ids.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty component registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under typeID.
func (r *Registry) Register(typeID string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if typeID == "" || f == nil {
		return fmt.Errorf("component registration requires a type id and a factory")
	}
	if _, exists := r.factories[typeID]; exists {
		return fmt.Errorf("component type %s already registered", typeID)
	}
	r.factories[typeID] = f
	return nil
}

// MustRegister is Register that panics on error. Use it from init-time
// registration functions.
func (r *Registry) MustRegister(typeID string, f Factory) {
	if err := r.Register(typeID, f); err != nil {
		panic(err)
	}
}

// New instantiates typeID and applies cfg through Configurable.
// Configuration given to a component that is not Configurable is an error.
func (r *Registry) New(typeID string, cfg map[string]any) (Component, error) {
	r.mu.RLock()
	f, ok := r.factories[typeID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("component type", typeID)
	}

	c := f()
	if c == nil {
		return nil, errors.Internal(fmt.Errorf("factory for %s returned nil", typeID))
	}
	if conf, ok := c.(Configurable); ok {
		if err := conf.Configure(cfg); err != nil {
			return nil, errors.InvalidInput("config", fmt.Sprintf("%s: %v", typeID, err)).WithCause(err)
		}
	} else if len(cfg) > 0 {
		return nil, errors.InvalidInput("config", fmt.Sprintf("component type %s takes no configuration", typeID))
	}
	return c, nil
}

// Has reports whether typeID is registered.
func (r *Registry) Has(typeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typeID]
	return ok
}

// Types returns all registered type ids, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
