package worker

import (
	"time"

	"github.com/kbukum/recpipe/validation"
)

// Hosting modes.
const (
	ModeLocal   = "local"
	ModeProcess = "process"
)

// Config configures how workers are hosted and supervised on the wire.
type Config struct {
	// Mode is "local" (goroutines over in-memory pipes) or "process".
	Mode string `yaml:"mode" mapstructure:"mode" validate:"oneof=local process"`
	// Binary is the executable re-run with the worker subcommand in process
	// mode. Defaults to the running executable.
	Binary string `yaml:"binary" mapstructure:"binary"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval" validate:"gt=0"`
	// HeartbeatTimeout is the longest silence tolerated from a busy worker.
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout" mapstructure:"heartbeat_timeout" validate:"gtfield=HeartbeatInterval"`
	StartTimeout     time.Duration `yaml:"start_timeout" mapstructure:"start_timeout" validate:"gt=0"`
	GracePeriod      time.Duration `yaml:"grace_period" mapstructure:"grace_period" validate:"gte=0"`

	// LogLevel is passed to worker children.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeProcess
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 5 * c.HeartbeatInterval
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = 10 * time.Second
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 5 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the section.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
