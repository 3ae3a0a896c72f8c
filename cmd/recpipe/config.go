package main

import (
	"fmt"

	"github.com/kbukum/recpipe/artifact"
	"github.com/kbukum/recpipe/batch"
	"github.com/kbukum/recpipe/config"
	"github.com/kbukum/recpipe/observability"
	"github.com/kbukum/recpipe/sink"
	"github.com/kbukum/recpipe/worker"
)

// Config is the recpipe configuration file.
//
//	name: recpipe
//	environment: production
//	logging: {level: info, format: console}
//	pool: {workers: 4, in_flight_factor: 2, request_timeout: 30s}
//	worker: {mode: process, heartbeat_interval: 1s}
//	artifacts: {backend: badger, path: .recpipe/artifacts}
//	sink: {kind: redis, redis_url: "redis://localhost:6379/0", stream: recs}
//	observability: {enabled: false}
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Pool          batch.Config         `yaml:"pool" mapstructure:"pool"`
	Worker        worker.Config        `yaml:"worker" mapstructure:"worker"`
	Artifacts     artifact.Config      `yaml:"artifacts" mapstructure:"artifacts"`
	Sink          sink.Config          `yaml:"sink" mapstructure:"sink"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every section. A command-line tool defaults to the
// production environment so logs stay at info.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "production"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Pool.ApplyDefaults()
	c.Worker.ApplyDefaults()
	c.Artifacts.ApplyDefaults()
	c.Sink.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	sections := []struct {
		name     string
		validate func() error
	}{
		{"pool", c.Pool.Validate},
		{"worker", c.Worker.Validate},
		{"artifacts", c.Artifacts.Validate},
		{"sink", c.Sink.Validate},
		{"observability", c.Observability.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("config.%s: %w", s.name, err)
		}
	}
	return nil
}
