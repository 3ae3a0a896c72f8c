package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/kbukum/recpipe/logger"
)

// NewMeterProvider builds an OTLP HTTP meter provider exporting every
// cfg.Interval and installs it as the global provider.
func NewMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Debug("meter provider installed", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the pipeline and batch instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	nodeRuns      metric.Int64Counter
	nodeDuration  metric.Float64Histogram
	batchRequests metric.Int64Counter
	batchRequeues metric.Int64Counter
	batchInFlight metric.Int64UpDownCounter
	workerSpawns  metric.Int64Counter
}

// NewMetrics creates the instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	nodeRuns, err := meter.Int64Counter("node.runs",
		metric.WithDescription("Pipeline node executions by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating node.runs counter: %w", err)
	}

	nodeDuration, err := meter.Float64Histogram("node.duration",
		metric.WithDescription("Duration of node executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating node.duration histogram: %w", err)
	}

	batchRequests, err := meter.Int64Counter("batch.requests",
		metric.WithDescription("Resolved batch requests by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batch.requests counter: %w", err)
	}

	batchRequeues, err := meter.Int64Counter("batch.requeues",
		metric.WithDescription("Requests requeued after a worker failure or timeout"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batch.requeues counter: %w", err)
	}

	batchInFlight, err := meter.Int64UpDownCounter("batch.inflight",
		metric.WithDescription("Requests dispatched and not yet resolved"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batch.inflight gauge: %w", err)
	}

	workerSpawns, err := meter.Int64Counter("worker.spawns",
		metric.WithDescription("Worker spawn attempts by mode and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating worker.spawns counter: %w", err)
	}

	return &Metrics{
		nodeRuns:      nodeRuns,
		nodeDuration:  nodeDuration,
		batchRequests: batchRequests,
		batchRequeues: batchRequeues,
		batchInFlight: batchInFlight,
		workerSpawns:  workerSpawns,
	}, nil
}

// RecordNode records one node execution.
func (m *Metrics) RecordNode(ctx context.Context, pipeline, node, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.nodeRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("node", node),
		attribute.String("status", status),
	))
	m.nodeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("pipeline", pipeline),
		attribute.String("node", node),
	))
}

// RecordRequest records a resolved batch request. code is empty on success.
func (m *Metrics) RecordRequest(ctx context.Context, status, code string) {
	if m == nil {
		return
	}
	m.batchRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("code", code),
	))
}

// RecordRequeue records a transparent retry.
func (m *Metrics) RecordRequeue(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.batchRequeues.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// AddInFlight adjusts the in-flight request gauge.
func (m *Metrics) AddInFlight(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.batchInFlight.Add(ctx, delta)
}

// RecordSpawn records a worker spawn attempt.
func (m *Metrics) RecordSpawn(ctx context.Context, mode, status string) {
	if m == nil {
		return
	}
	m.workerSpawns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
}
