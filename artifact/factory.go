package artifact

import (
	"fmt"
	"sort"

	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
)

// Factory opens a Store for a validated Config.
type Factory func(cfg Config, log *logger.Logger) (Store, error)

var factories = map[string]Factory{
	BackendFile: func(cfg Config, _ *logger.Logger) (Store, error) {
		return NewFileStore(cfg.Path)
	},
	BackendBadger: func(cfg Config, log *logger.Logger) (Store, error) {
		return OpenBadger(cfg.Path, cfg.InMemory, log)
	},
}

// Backends lists the registered backend names.
func Backends() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the Store selected by cfg.Backend.
func Open(cfg Config, log *logger.Logger) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	l := log.WithComponent("artifact")

	f, ok := factories[cfg.Backend]
	if !ok {
		return nil, errors.InvalidInput("backend", fmt.Sprintf("unsupported artifact backend %q", cfg.Backend))
	}

	l.Info("opening artifact store", logger.Fields("backend", cfg.Backend, "path", cfg.Path, "in_memory", cfg.InMemory))
	return f(cfg, l)
}
