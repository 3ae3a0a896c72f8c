package dag

import (
	"context"
	"time"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
	"github.com/kbukum/recpipe/observability"
)

// NodeFunc executes one node with resolved inputs.
type NodeFunc func(ctx context.Context, node *GraphNode, in component.Inputs) (any, error)

// Middleware wraps node execution.
type Middleware func(next NodeFunc) NodeFunc

func chain(mw []Middleware, final NodeFunc) NodeFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		final = mw[i](final)
	}
	return final
}

// Tracing creates a span named "{prefix}.{node}" per execution.
func Tracing(prefix string) Middleware {
	return func(next NodeFunc) NodeFunc {
		return func(ctx context.Context, node *GraphNode, in component.Inputs) (any, error) {
			ctx, span := observability.StartSpan(ctx, prefix+"."+node.Name())
			defer span.End()

			observability.SetSpanAttribute(ctx, observability.AttrNode, node.Name())
			observability.SetSpanAttribute(ctx, observability.AttrPipeline, node.pipeline)

			out, err := next(ctx, node, in)
			if err != nil {
				observability.SetSpanError(ctx, err)
			}
			return out, err
		}
	}
}

// Metrics records node.runs and node.duration.
func Metrics(m *observability.Metrics) Middleware {
	return func(next NodeFunc) NodeFunc {
		return func(ctx context.Context, node *GraphNode, in component.Inputs) (any, error) {
			start := time.Now()
			out, err := next(ctx, node, in)

			status := string(StatusCompleted)
			if err != nil {
				status = string(StatusFailed)
			}
			m.RecordNode(ctx, node.pipeline, node.Name(), status, time.Since(start))
			return out, err
		}
	}
}

// Logging logs each node at debug level, and failures at error level.
func Logging(log *logger.Logger) Middleware {
	return func(next NodeFunc) NodeFunc {
		return func(ctx context.Context, node *GraphNode, in component.Inputs) (any, error) {
			start := time.Now()
			out, err := next(ctx, node, in)

			fields := map[string]interface{}{
				logger.FieldPipeline: node.pipeline,
				logger.FieldNode:     node.Name(),
				logger.FieldDuration: time.Since(start).Milliseconds(),
			}
			if err != nil {
				fields[logger.FieldError] = err.Error()
				if code := errors.From(err).Code; code != errors.ErrCodeInternal {
					fields["code"] = string(code)
				}
				log.WithContext(ctx).Error("dag node failed", fields)
			} else {
				log.WithContext(ctx).Debug("dag node completed", fields)
			}
			return out, err
		}
	}
}
