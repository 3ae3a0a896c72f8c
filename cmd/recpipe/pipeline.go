package main

import (
	"context"
	"path/filepath"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/components"
	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/logger"
)

// newRegistry is the component registry shared by the CLI and its
// worker children, so both resolve the same type ids.
func newRegistry() *component.Registry {
	return components.NewRegistry()
}

// buildFromFile loads a definition and builds it, resolving includes
// against the definition's directory.
func buildFromFile(path string) (*dag.Pipeline, error) {
	def, err := dag.LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	return dag.Build(def, newRegistry(), dag.WithLoader(dag.NewDirLoader(filepath.Dir(path))))
}

// trainFromFile trains p on the ratings at path.
func trainFromFile(ctx context.Context, p *dag.Pipeline, path string, s *session) error {
	f, err := openInput(path, s.stdin)
	if err != nil {
		return err
	}
	defer f.Close()
	ds, err := readRatings(f)
	if err != nil {
		return err
	}
	s.log.Info("training pipeline", logger.Fields(
		logger.FieldPipeline, p.Name(),
		"ratings", len(ds.Ratings),
		"users", len(ds.Users()),
		"items", len(ds.Items()),
	))
	return dag.Train(ctx, p, ds)
}

func (s *session) executor() *dag.Executor {
	return dag.NewExecutor(
		dag.WithLogger(s.log),
		dag.WithTracing("dag"),
		dag.WithMetrics(s.metrics),
	)
}

func hasParam(p *dag.Pipeline, name string) bool {
	for _, ps := range p.Params() {
		if ps.Name == name {
			return true
		}
	}
	return false
}
