package dag

import "time"

// NodeStatus is the outcome of one node in a run.
type NodeStatus string

const (
	StatusCompleted NodeStatus = "completed"
	StatusSkipped   NodeStatus = "skipped"
	StatusFailed    NodeStatus = "failed"
	// StatusPending marks needed nodes that never ran because an earlier
	// node failed or the run was cancelled.
	StatusPending NodeStatus = "pending"
)

// Result holds the outcome of a pipeline run.
type Result struct {
	// Outputs maps declared output names to values.
	Outputs map[string]any
	// Nodes holds one entry per pipeline node.
	Nodes map[string]NodeResult
	// Order lists the nodes that ran, in execution order.
	Order    []string
	Duration time.Duration
}

// NodeResult holds the outcome of a single node.
type NodeResult struct {
	Name     string
	Status   NodeStatus
	Duration time.Duration
	// Slots is the slot-resolution trace, e.g. "matrix<-node:load".
	Slots []string
	Error error
}

// Output returns one declared output.
func (r *Result) Output(name string) (any, bool) {
	v, ok := r.Outputs[name]
	return v, ok
}
