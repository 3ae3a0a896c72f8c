// Package errors provides the unified error type for recpipe.
// Every failure is an AppError with a machine-readable code, grouped into
// families (graph build, node execution, worker failure, timeout, job),
// with retryable detection and a wire payload for crossing worker boundaries.
package errors
