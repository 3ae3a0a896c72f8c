package sink

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
	"github.com/kbukum/recpipe/validation"
)

// Sink kinds.
const (
	KindStdout  = "stdout"
	KindJSONL   = "jsonl"
	KindRedis   = "redis"
	KindDiscard = "discard"
)

// DefaultStream is the redis stream used when none is configured.
const DefaultStream = "recpipe:results"

// Config selects where batch results go.
type Config struct {
	Kind string `yaml:"kind" mapstructure:"kind" validate:"oneof=stdout jsonl redis discard"`
	// Path is the output file for jsonl.
	Path     string `yaml:"path" mapstructure:"path" validate:"required_if=Kind jsonl"`
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url" validate:"required_if=Kind redis"`
	Stream   string `yaml:"stream" mapstructure:"stream"`
	MaxLen   int64  `yaml:"max_len" mapstructure:"max_len" validate:"gte=0"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Kind == "" {
		c.Kind = KindStdout
	}
	if c.Kind == KindRedis && c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.MaxLen == 0 {
		c.MaxLen = DefaultMaxLen
	}
}

// Validate checks the section.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// ParseSpec reads a command-line sink spec on top of base:
//
//	stdout
//	discard
//	jsonl:results/out.jsonl
//	redis                                  (URL and stream from base)
//	redis://localhost:6379/0?stream=recs   (URL given inline)
func ParseSpec(spec string, base Config) (Config, error) {
	cfg := base
	switch {
	case spec == "":
	case spec == KindStdout, spec == KindDiscard, spec == KindRedis:
		cfg.Kind = spec
	case strings.HasPrefix(spec, KindJSONL+":"):
		cfg.Kind = KindJSONL
		cfg.Path = strings.TrimPrefix(spec, KindJSONL+":")
	case strings.HasPrefix(spec, "redis://"), strings.HasPrefix(spec, "rediss://"):
		u, err := url.Parse(spec)
		if err != nil {
			return cfg, errors.InvalidInput("sink", err.Error())
		}
		q := u.Query()
		if stream := q.Get("stream"); stream != "" {
			cfg.Stream = stream
		}
		q.Del("stream")
		u.RawQuery = q.Encode()
		cfg.Kind = KindRedis
		cfg.RedisURL = u.String()
	default:
		return cfg, errors.InvalidInput("sink", fmt.Sprintf("unknown sink %q", spec))
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// Open creates the sink cfg selects.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (Sink, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindJSONL:
		return CreateJSONL(cfg.Path)
	case KindRedis:
		return DialRedis(ctx, cfg.RedisURL, cfg.Stream, cfg.MaxLen, log)
	case KindDiscard:
		return Discard{}, nil
	default:
		return Stdout(), nil
	}
}
