package main

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kbukum/recpipe/logger"
)

type runFlags struct {
	pipeline   string
	params     []string
	paramsFile string
	ratings    string
}

func newRunCmd(c *cli) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one query through a pipeline definition and print its outputs",
		Example: `  recpipe run -p matrix.yaml --param 'raw=[[1,2],[3,4]]'
  recpipe run -p knn.yaml -r ratings.jsonl --param 'query={"user":"u1"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := parseParams(f.paramsFile, f.params, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return c.runTask(cmd, taskSpec{
				run: func(ctx context.Context, s *session) error {
					return runOnce(ctx, cmd, s, f, params)
				},
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.pipeline, "pipeline", "p", "", "pipeline definition file (required)")
	fl.StringArrayVar(&f.params, "param", nil, "parameter as key=json, repeatable")
	fl.StringVar(&f.paramsFile, "params", "", "JSON object file of parameters (- for stdin)")
	fl.StringVarP(&f.ratings, "ratings", "r", "", "train on these JSON-lines ratings before running")
	_ = cmd.MarkFlagRequired("pipeline")
	return cmd
}

func runOnce(ctx context.Context, cmd *cobra.Command, s *session, f runFlags, params map[string]any) error {
	p, err := buildFromFile(f.pipeline)
	if err != nil {
		return err
	}
	if f.ratings != "" {
		if err := trainFromFile(ctx, p, f.ratings, s); err != nil {
			return err
		}
	}

	res, err := s.executor().Run(ctx, p, params)
	if err != nil {
		return err
	}
	s.log.Debug("query finished", logger.Fields(
		logger.FieldPipeline, p.Name(),
		logger.FieldDuration, res.Duration.Milliseconds(),
		"nodes", len(res.Order),
	))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res.Outputs)
}
