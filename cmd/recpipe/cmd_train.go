package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/recpipe/artifact"
	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/logger"
)

type trainFlags struct {
	pipeline string
	ratings  string
}

func newTrainCmd(c *cli) *cobra.Command {
	var f trainFlags
	cmd := &cobra.Command{
		Use:     "train",
		Short:   "Train a pipeline's trainable nodes and save it to the artifact store",
		Example: "  recpipe train -p knn.yaml -r ratings.jsonl --store .recpipe/artifacts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTask(cmd, taskSpec{
				withStore: true,
				run: func(ctx context.Context, s *session) error {
					return train(ctx, cmd, s, f)
				},
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.pipeline, "pipeline", "p", "", "pipeline definition file (required)")
	fl.StringVarP(&f.ratings, "ratings", "r", "", "JSON-lines ratings file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("pipeline")
	_ = cmd.MarkFlagRequired("ratings")
	return cmd
}

func train(ctx context.Context, cmd *cobra.Command, s *session, f trainFlags) error {
	p, err := buildFromFile(f.pipeline)
	if err != nil {
		return err
	}
	if err := trainFromFile(ctx, p, f.ratings, s); err != nil {
		return err
	}
	bp, err := dag.NewBlueprint(p)
	if err != nil {
		return err
	}
	if err := artifact.SavePipeline(ctx, s.store.Store(), bp); err != nil {
		return err
	}
	s.log.Info("pipeline saved", logger.Fields(logger.FieldPipeline, p.Name(), "states", len(bp.States)))
	fmt.Fprintf(cmd.OutOrStdout(), "saved pipeline %s (%d trained nodes)\n", p.Name(), len(bp.States))
	return nil
}
