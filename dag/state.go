package dag

// RunContext is the per-invocation state of one pipeline run: the query's
// parameters and the memo of computed node outputs. It is created fresh for
// every run and used from a single goroutine.
type RunContext struct {
	params map[string]any
	memo   map[string]any
}

// NewRunContext creates a run context over params.
func NewRunContext(params map[string]any) *RunContext {
	if params == nil {
		params = map[string]any{}
	}
	return &RunContext{params: params, memo: make(map[string]any)}
}

// Param returns a parameter value.
func (rc *RunContext) Param(name string) (any, bool) {
	v, ok := rc.params[name]
	return v, ok
}

// Value returns the memoized output of node.
func (rc *RunContext) Value(node string) (any, bool) {
	v, ok := rc.memo[node]
	return v, ok
}

// Done reports whether node has already produced a value.
func (rc *RunContext) Done(node string) bool {
	_, ok := rc.memo[node]
	return ok
}

func (rc *RunContext) store(node string, v any) {
	rc.memo[node] = v
}
