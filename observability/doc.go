// Package observability wires OpenTelemetry tracing and metrics for recpipe.
//
// Setup installs OTLP HTTP exporters when enabled; otherwise the global
// no-op providers stay in place and instrumented code costs little. Metrics
// exposes the node, batch and worker instruments; a nil *Metrics is valid.
package observability
