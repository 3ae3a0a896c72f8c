package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Graph build errors. Always raised synchronously by the builder or loader.
const (
	// ErrCodeDuplicateNode indicates a node or parameter name is already taken.
	ErrCodeDuplicateNode ErrorCode = "DUPLICATE_NODE"
	// ErrCodeUnknownInput indicates a binding references a slot, node or parameter that does not exist.
	ErrCodeUnknownInput ErrorCode = "UNKNOWN_INPUT"
	// ErrCodeUnboundInput indicates a required slot has no source at finalize.
	ErrCodeUnboundInput ErrorCode = "UNBOUND_INPUT"
	// ErrCodeTypeMismatch indicates a producer type is incompatible with the consuming slot.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
	// ErrCodeCycle indicates the node dependency relation is cyclic.
	ErrCodeCycle ErrorCode = "CYCLE"
	// ErrCodeFrozenGraph indicates a mutation was attempted after finalize.
	ErrCodeFrozenGraph ErrorCode = "FROZEN_GRAPH"
	// ErrCodeInvalidGraph indicates a structurally invalid graph or definition.
	ErrCodeInvalidGraph ErrorCode = "INVALID_GRAPH"
)

// Execution errors
const (
	// ErrCodeNodeExecution indicates a component failed while running a node.
	ErrCodeNodeExecution ErrorCode = "NODE_EXECUTION"
	// ErrCodeInvalidOutput indicates a pipeline output could not be encoded for the wire.
	ErrCodeInvalidOutput ErrorCode = "INVALID_OUTPUT"
)

// Worker and batch errors
const (
	// ErrCodeWorkerFailure indicates a worker crashed or its connection was lost.
	ErrCodeWorkerFailure ErrorCode = "WORKER_FAILURE"
	// ErrCodeTimeout indicates a request or job exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeAborted indicates the request was abandoned because its job was aborted.
	ErrCodeAborted ErrorCode = "ABORTED"
	// ErrCodeCancelled indicates the request was dropped by cancellation.
	ErrCodeCancelled ErrorCode = "CANCELLED"
	// ErrCodeUnavailable indicates the pool is not accepting work.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
)

// General errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeStorage indicates an artifact store failure.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeWorkerFailure: true,
	ErrCodeTimeout:       true,
	ErrCodeUnavailable:   true,
	ErrCodeStorage:       true,
	ErrCodeInternal:      false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// Error families.
const (
	FamilyGraphBuild    = "graph_build"
	FamilyNodeExecution = "node_execution"
	FamilyWorkerFailure = "worker_failure"
	FamilyTimeout       = "timeout"
	FamilyJob           = "job"
	FamilyGeneral       = "general"
)

var codeFamilies = map[ErrorCode]string{
	ErrCodeDuplicateNode: FamilyGraphBuild,
	ErrCodeUnknownInput:  FamilyGraphBuild,
	ErrCodeUnboundInput:  FamilyGraphBuild,
	ErrCodeTypeMismatch:  FamilyGraphBuild,
	ErrCodeCycle:         FamilyGraphBuild,
	ErrCodeFrozenGraph:   FamilyGraphBuild,
	ErrCodeInvalidGraph:  FamilyGraphBuild,
	ErrCodeNodeExecution: FamilyNodeExecution,
	ErrCodeInvalidOutput: FamilyNodeExecution,
	ErrCodeWorkerFailure: FamilyWorkerFailure,
	ErrCodeTimeout:       FamilyTimeout,
	ErrCodeAborted:       FamilyJob,
	ErrCodeCancelled:     FamilyJob,
	ErrCodeUnavailable:   FamilyJob,
}

// FamilyOf returns the error family a code belongs to.
func FamilyOf(code ErrorCode) string {
	if f, ok := codeFamilies[code]; ok {
		return f
	}
	return FamilyGeneral
}
