package dag

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
	"github.com/kbukum/recpipe/observability"
)

// Executor runs finalized pipelines. Nodes run one at a time, in the
// pipeline's cached order, on the calling goroutine.
type Executor struct {
	log        *logger.Logger
	middleware []Middleware
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger and logs each node execution.
func WithLogger(log *logger.Logger) Option {
	return func(e *Executor) {
		e.log = log
		e.middleware = append(e.middleware, Logging(log))
	}
}

// WithTracing creates one span per node named "{prefix}.{node}".
func WithTracing(prefix string) Option {
	return func(e *Executor) { e.middleware = append(e.middleware, Tracing(prefix)) }
}

// WithMetrics records node.runs and node.duration.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.middleware = append(e.middleware, Metrics(m)) }
}

// WithMiddleware appends custom node middleware. The first middleware
// added is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(e *Executor) { e.middleware = append(e.middleware, mw...) }
}

// NewExecutor creates an executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{log: logger.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExecutor = NewExecutor()

// Run evaluates p for one query using a plain executor.
func Run(ctx context.Context, p *Pipeline, params map[string]any) (*Result, error) {
	return defaultExecutor.Run(ctx, p, params)
}

// Run evaluates the nodes the declared outputs depend on, each at most
// once, and returns the outputs. On a node failure it stops and returns the
// partial result together with a NODE_EXECUTION error. Nothing is retried.
func (e *Executor) Run(ctx context.Context, p *Pipeline, params map[string]any) (*Result, error) {
	start := time.Now()

	for _, ps := range p.params {
		if _, ok := params[ps.Name]; !ok {
			return nil, errors.InvalidInput(ps.Name, fmt.Sprintf("missing required parameter %q", ps.Name))
		}
	}

	rc := NewRunContext(params)
	result := &Result{
		Outputs: make(map[string]any, len(p.outputs)),
		Nodes:   make(map[string]NodeResult, len(p.nodes)),
	}
	for _, name := range p.order {
		status := StatusPending
		if !p.needed[name] {
			status = StatusSkipped
		}
		result.Nodes[name] = NodeResult{Name: name, Status: status}
	}

	call := chain(e.middleware, invoke)

	for _, name := range p.order {
		if !p.needed[name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, contextError(err)
		}

		node := p.nodes[name]
		in, trace := resolve(node, rc)

		nodeStart := time.Now()
		out, err := call(ctx, node, in)
		nr := NodeResult{Name: name, Duration: time.Since(nodeStart), Slots: trace}
		result.Order = append(result.Order, name)

		if err != nil {
			nr.Status = StatusFailed
			if ctx.Err() != nil && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)) {
				nr.Error = contextError(ctx.Err())
			} else {
				nr.Error = errors.NodeExecution(name, trace, err)
			}
			result.Nodes[name] = nr
			result.Duration = time.Since(start)
			return result, nr.Error
		}

		nr.Status = StatusCompleted
		result.Nodes[name] = nr
		rc.store(name, out)
	}

	for outName, node := range p.outputs {
		v, _ := rc.Value(node)
		result.Outputs[outName] = v
	}
	result.Duration = time.Since(start)
	return result, nil
}

// resolve builds a node's inputs from its bindings and returns the
// slot-resolution trace.
func resolve(n *GraphNode, rc *RunContext) (component.Inputs, []string) {
	in := make(component.Inputs, len(n.slots))
	trace := make([]string, 0, len(n.slots))

	for _, s := range n.slots {
		src, bound := n.bindings[s.Name]
		switch {
		case !bound:
			if s.Default != nil {
				in[s.Name] = s.Default
				trace = append(trace, s.Name+"<-default")
			} else {
				trace = append(trace, s.Name+"<-unbound")
			}
			continue
		case src.Kind == SourceParam:
			in[s.Name], _ = rc.Param(src.Ref)
		case src.Kind == SourceLiteral:
			in[s.Name] = src.Value
		case src.Kind == SourceNode:
			in[s.Name], _ = rc.Value(src.Ref)
		}
		trace = append(trace, s.Name+"<-"+src.String())
	}
	return in, trace
}

func invoke(ctx context.Context, n *GraphNode, in component.Inputs) (any, error) {
	return n.comp.Run(ctx, in)
}

func contextError(err error) *errors.AppError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout("pipeline run", 0).WithCause(err)
	}
	return errors.Cancelled("pipeline run cancelled").WithCause(err)
}
