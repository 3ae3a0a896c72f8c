package batch

import (
	"runtime"
	"time"

	"github.com/kbukum/recpipe/validation"
)

// Config configures a worker pool.
type Config struct {
	// Workers is the number of worker slots.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=1"`
	// InFlightFactor bounds dispatched-but-unresolved requests across all
	// jobs at InFlightFactor × Workers.
	InFlightFactor int `yaml:"in_flight_factor" mapstructure:"in_flight_factor" validate:"gte=1"`

	// RequestTimeout is the default per-request deadline. Zero disables it.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout" validate:"gte=0"`
	// JobTimeout is the default per-job deadline. Zero disables it.
	JobTimeout      time.Duration `yaml:"job_timeout" mapstructure:"job_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gt=0"`

	// SpawnAttempts bounds consecutive spawn failures before a slot gives up.
	SpawnAttempts int           `yaml:"spawn_attempts" mapstructure:"spawn_attempts" validate:"gte=1"`
	SpawnBackoff  time.Duration `yaml:"spawn_backoff" mapstructure:"spawn_backoff" validate:"gte=0"`

	// Supervisor restart throttling.
	FailureThreshold float64       `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gte=0"`
	FailureDecay     float64       `yaml:"failure_decay" mapstructure:"failure_decay" validate:"gte=0"`
	FailureBackoff   time.Duration `yaml:"failure_backoff" mapstructure:"failure_backoff" validate:"gte=0"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.InFlightFactor <= 0 {
		c.InFlightFactor = 2
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.SpawnAttempts <= 0 {
		c.SpawnAttempts = 3
	}
	if c.SpawnBackoff <= 0 {
		c.SpawnBackoff = 100 * time.Millisecond
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.FailureDecay <= 0 {
		c.FailureDecay = 30
	}
	if c.FailureBackoff <= 0 {
		c.FailureBackoff = 15 * time.Second
	}
}

// Validate checks the section.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// capacity is the bulkhead size.
func (c *Config) capacity() int {
	return c.InFlightFactor * c.Workers
}
