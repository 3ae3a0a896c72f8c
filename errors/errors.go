package errors

import (
	"fmt"
	"strings"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Graph build errors ---

// DuplicateNode reports a node or parameter name that is already registered.
func DuplicateNode(name string) *AppError {
	return &AppError{
		Code: ErrCodeDuplicateNode, Message: fmt.Sprintf("node %q already exists", name),
		Details: map[string]any{"node": name},
	}
}

// UnknownInput reports a binding that references something that does not exist.
// kind is one of "slot", "node" or "param".
func UnknownInput(node, slot, kind, ref string) *AppError {
	return &AppError{
		Code:    ErrCodeUnknownInput,
		Message: fmt.Sprintf("node %q slot %q references unknown %s %q", node, slot, kind, ref),
		Details: map[string]any{"node": node, "slot": slot, "kind": kind, "ref": ref},
	}
}

// UnboundInput reports a required slot left without a source.
func UnboundInput(node, slot string) *AppError {
	return &AppError{
		Code:    ErrCodeUnboundInput,
		Message: fmt.Sprintf("node %q: required slot %q has no source", node, slot),
		Details: map[string]any{"node": node, "slot": slot},
	}
}

// TypeMismatch reports a producer type the consuming slot cannot accept.
func TypeMismatch(node, slot, want, got string) *AppError {
	return &AppError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("node %q slot %q expects %s, source produces %s", node, slot, want, got),
		Details: map[string]any{"node": node, "slot": slot, "expected": want, "actual": got},
	}
}

// Cycle reports the node names forming a dependency cycle, first node repeated last.
func Cycle(path []string) *AppError {
	return &AppError{
		Code:    ErrCodeCycle,
		Message: "dependency cycle: " + strings.Join(path, " -> "),
		Details: map[string]any{"cycle": path},
	}
}

// FrozenGraph reports a mutation attempted on a finalized graph.
func FrozenGraph(op string) *AppError {
	return &AppError{
		Code: ErrCodeFrozenGraph, Message: fmt.Sprintf("graph is finalized: %s not allowed", op),
		Details: map[string]any{"operation": op},
	}
}

// InvalidGraph reports a structural problem with a graph or definition.
func InvalidGraph(reason string) *AppError {
	return &AppError{Code: ErrCodeInvalidGraph, Message: reason}
}

// --- Execution errors ---

// NodeExecution wraps a component failure with the node name and its slot-resolution trace.
func NodeExecution(node string, slots []string, cause error) *AppError {
	if slots == nil {
		slots = []string{}
	}
	return &AppError{
		Code:    ErrCodeNodeExecution,
		Message: fmt.Sprintf("node %q failed", node),
		Details: map[string]any{"node": node, "slots": slots},
		Cause:   cause,
	}
}

// InvalidOutput reports a pipeline output that cannot be serialized.
func InvalidOutput(output string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidOutput,
		Message: fmt.Sprintf("output %q cannot be encoded", output),
		Details: map[string]any{"output": output},
		Cause:   cause,
	}
}

// --- Worker and batch errors ---

// WorkerFailure reports a lost or crashed worker.
func WorkerFailure(worker string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeWorkerFailure, Message: fmt.Sprintf("worker %s failed", worker),
		Retryable: true, Details: map[string]any{"worker": worker}, Cause: cause,
	}
}

// Timeout creates a new AppError for an operation that exceeded its deadline.
func Timeout(operation string, after time.Duration) *AppError {
	details := map[string]any{"operation": operation}
	if after > 0 {
		details["after"] = after.String()
	}
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s timed out", operation),
		Retryable: true, Details: details,
	}
}

// Aborted reports a request abandoned by a job abort.
func Aborted(reason string) *AppError {
	return &AppError{
		Code: ErrCodeAborted, Message: "job aborted: " + reason,
		Details: map[string]any{"reason": reason},
	}
}

// Cancelled reports a request dropped by cancellation.
func Cancelled(reason string) *AppError {
	return &AppError{
		Code: ErrCodeCancelled, Message: "cancelled: " + reason,
		Details: map[string]any{"reason": reason},
	}
}

// Unavailable reports that a service is not accepting work.
func Unavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeUnavailable, Message: fmt.Sprintf("%s is not accepting work", service),
		Retryable: true, Details: map[string]any{"service": service},
	}
}

// --- General errors ---

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id),
		Details: details,
	}
}

// Storage creates a new AppError for an artifact store failure.
func Storage(op string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeStorage, Message: fmt.Sprintf("storage %s failed", op),
		Retryable: true, Details: map[string]any{"operation": op}, Cause: cause,
	}
}

// Internal creates a new AppError for an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "unexpected error", Cause: cause,
	}
}
