package logger

import "sync"

// Component logger names seeded by the application at startup.
const (
	ComponentBatch     = "batch"
	ComponentWorker    = "worker"
	ComponentArtifacts = "artifacts"
	ComponentSink      = "sink"
	ComponentDAG       = "dag"
)

var components = struct {
	sync.RWMutex
	byName map[string]*Logger
}{byName: make(map[string]*Logger)}

// Register makes l the logger returned by Get(name).
func Register(name string, l *Logger) {
	components.Lock()
	components.byName[name] = l
	components.Unlock()
}

// RegisterComponents registers base tagged with each component name.
func RegisterComponents(base *Logger, names ...string) {
	for _, name := range names {
		Register(name, base.WithComponent(name))
	}
}

// Get returns the logger registered for a component. Unregistered names get
// the global logger tagged with the name.
func Get(name string) *Logger {
	components.RLock()
	l, ok := components.byName[name]
	components.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}
