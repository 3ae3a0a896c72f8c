package dag

import (
	"context"
	"time"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
)

// Train fits every Trainable node on ds, in topological order. The first
// failure stops training and is returned as NODE_EXECUTION.
func Train(ctx context.Context, p *Pipeline, ds *component.Dataset) error {
	log := logger.Get(logger.ComponentDAG)
	for _, n := range p.Nodes() {
		t, ok := n.comp.(component.Trainable)
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return contextError(err)
		}

		start := time.Now()
		if err := t.Train(ctx, ds); err != nil {
			return errors.NodeExecution(n.Name(), nil, err)
		}
		log.Debug("node trained", map[string]interface{}{
			logger.FieldPipeline: p.Name(),
			logger.FieldNode:     n.Name(),
			logger.FieldDuration: time.Since(start).Milliseconds(),
			"ratings":            len(ds.Ratings),
		})
	}
	return nil
}
