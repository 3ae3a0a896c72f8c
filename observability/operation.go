package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// JobContext holds observability state for one batch job.
type JobContext struct {
	Pipeline  string
	JobID     string
	Requests  int
	StartTime time.Time
}

// NewJobContext creates a job context starting now.
func NewJobContext(pipeline, jobID string, requests int) *JobContext {
	return &JobContext{
		Pipeline:  pipeline,
		JobID:     jobID,
		Requests:  requests,
		StartTime: time.Now(),
	}
}

type jobContextKey struct{}

// WithJobContext stores a JobContext in the context.
func WithJobContext(ctx context.Context, jc *JobContext) context.Context {
	return context.WithValue(ctx, jobContextKey{}, jc)
}

// JobContextFromContext retrieves the JobContext from context, or nil.
func JobContextFromContext(ctx context.Context) *JobContext {
	if jc, ok := ctx.Value(jobContextKey{}).(*JobContext); ok {
		return jc
	}
	return nil
}

// StartSpan starts the job span.
func (jc *JobContext) StartSpan(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanBatchJob)
	span.SetAttributes(
		attribute.String(AttrPipeline, jc.Pipeline),
		attribute.String(AttrJobID, jc.JobID),
		attribute.Int(AttrRequests, jc.Requests),
	)
	return WithJobContext(ctx, jc), span
}

// End ends the job span with its final status and abort reason.
func (jc *JobContext) End(span trace.Span, status, reason string) {
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64("duration_ms", jc.Duration().Milliseconds()),
	)
	if reason != "" {
		span.SetAttributes(attribute.String(AttrReason, reason))
	}
	span.End()
}

// Duration returns the elapsed time since the job started.
func (jc *JobContext) Duration() time.Duration {
	return time.Since(jc.StartTime)
}
