package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kbukum/recpipe/artifact"
	"github.com/kbukum/recpipe/components"
	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/eval"
	"github.com/kbukum/recpipe/logger"
)

type recommendFlags struct {
	n      int
	output string
	// name of the pipeline output holding the ranked list
	list string
}

func newRecommendCmd(c *cli) *cobra.Command {
	var f recommendFlags
	cmd := &cobra.Command{
		Use:     "recommend NAME USERS...",
		Short:   "Print recommendations for users from a stored pipeline",
		Example: "  recpipe recommend knn u1 u2 -n 5",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.n < 0 {
				return fmt.Errorf("-n must not be negative")
			}
			return c.runTask(cmd, taskSpec{
				withStore: true,
				run: func(ctx context.Context, s *session) error {
					return recommend(ctx, cmd, s, f, args[0], args[1:])
				},
			})
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&f.n, "list-length", "n", 0, "recommendation list length (0 = pipeline default)")
	fl.StringVarP(&f.output, "output", "o", "", "write recommendations to FILE instead of stdout")
	fl.StringVar(&f.list, "list-output", "", "pipeline output holding the list (default: the only output)")
	return cmd
}

func recommend(ctx context.Context, cmd *cobra.Command, s *session, f recommendFlags, name string, users []string) error {
	bp, err := artifact.LoadBlueprint(ctx, s.store.Store(), name)
	if err != nil {
		return err
	}
	p, err := bp.Build(newRegistry())
	if err != nil {
		return err
	}
	list, err := listOutput(p.Name(), p.OutputNames(), f.list)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	w := bufio.NewWriter(out)

	exec := s.executor()
	for _, user := range users {
		params := map[string]any{"query": components.Query{User: user}}
		if f.n > 0 && hasParam(p, "n") {
			params["n"] = f.n
		}
		res, err := exec.Run(ctx, p, params)
		if err != nil {
			return fmt.Errorf("user %s: %w", user, err)
		}
		ids, err := components.ItemIDs(res.Outputs[list])
		if err != nil {
			return fmt.Errorf("user %s: output %q: %w", user, list, err)
		}
		if f.n > 0 {
			ids, _ = eval.Truncate(ids, f.n)
		}
		s.log.Info("recommended for user", logger.Fields("user", user, "length", len(ids)))
		for _, id := range ids {
			fmt.Fprintf(w, "item %s\n", id)
		}
	}
	return w.Flush()
}

// listOutput picks the output holding the ranked list.
func listOutput(pipeline string, names []string, want string) (string, error) {
	if want != "" {
		for _, n := range names {
			if n == want {
				return want, nil
			}
		}
		return "", fmt.Errorf("pipeline %s has no output %q (have %v)", pipeline, want, names)
	}
	if len(names) != 1 {
		return "", fmt.Errorf("pipeline %s has outputs %v; choose one with --list-output", pipeline, names)
	}
	return names[0], nil
}

func sortedOutputs(def *dag.Definition) []string {
	names := make([]string, 0, len(def.Outputs))
	for name := range def.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
