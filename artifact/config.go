package artifact

import (
	"github.com/kbukum/recpipe/validation"
)

// Backend names.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// DefaultPath is where artifacts live unless configured otherwise.
const DefaultPath = ".recpipe/artifacts"

// Config selects and configures the artifact backend.
type Config struct {
	Backend string `yaml:"backend" mapstructure:"backend" validate:"oneof=file badger"`
	// Path is the root directory (file) or database directory (badger).
	Path string `yaml:"path" mapstructure:"path" validate:"required_unless=InMemory true"`
	// InMemory keeps a badger database in memory only.
	InMemory bool `yaml:"in_memory" mapstructure:"in_memory"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.Path == "" && !c.InMemory {
		c.Path = DefaultPath
	}
}

// Validate checks the section.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
