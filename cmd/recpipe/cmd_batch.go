package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/recpipe/artifact"
	"github.com/kbukum/recpipe/batch"
	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/eval"
	"github.com/kbukum/recpipe/logger"
	"github.com/kbukum/recpipe/sink"
	"github.com/kbukum/recpipe/worker"
)

type batchFlags struct {
	requests       string
	workers        int
	mode           string
	failFast       bool
	ordered        bool
	sink           string
	truth          string
	k              int
	list           string
	requestTimeout time.Duration
	jobTimeout     time.Duration
}

func newBatchCmd(c *cli) *cobra.Command {
	var f batchFlags
	cmd := &cobra.Command{
		Use:   "batch NAME",
		Short: "Run many queries through a stored pipeline on a worker pool",
		Example: `  recpipe batch knn --requests users.jsonl --workers 4
  recpipe batch knn --requests users.jsonl --sink redis://localhost:6379/0?stream=recs
  recpipe batch knn --requests users.jsonl --sink discard --truth test.jsonl --k 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, c, f, args[0])
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.requests, "requests", "", "JSON-lines requests file, - for stdin (required)")
	fl.IntVar(&f.workers, "workers", 0, "worker count (overrides pool.workers)")
	fl.StringVar(&f.mode, "mode", "", "worker hosting: local or process (overrides worker.mode)")
	fl.BoolVar(&f.failFast, "fail-fast", false, "abort the job on the first failed request")
	fl.BoolVar(&f.ordered, "ordered", true, "deliver results in submission order")
	fl.StringVar(&f.sink, "sink", "", "stdout, discard, jsonl:PATH, redis or a redis:// URL (default from config)")
	fl.StringVar(&f.truth, "truth", "", "JSON-lines {user, item} relevance file to score lists against")
	fl.IntVar(&f.k, "k", 0, "metric cutoff (0 = whole list)")
	fl.StringVar(&f.list, "list-output", "", "pipeline output holding the list (default: the only output)")
	fl.DurationVar(&f.requestTimeout, "request-timeout", 0, "per-request deadline (overrides pool.request_timeout)")
	fl.DurationVar(&f.jobTimeout, "job-timeout", 0, "whole-job deadline (overrides pool.job_timeout)")
	_ = cmd.MarkFlagRequired("requests")
	return cmd
}

func runBatch(cmd *cobra.Command, c *cli, f batchFlags, name string) error {
	if f.k < 0 {
		return fmt.Errorf("--k must not be negative")
	}
	in, err := openInput(f.requests, cmd.InOrStdin())
	if err != nil {
		return err
	}
	reqs, err := readRequests(in)
	in.Close()
	if err != nil {
		return err
	}

	var truth map[string]eval.Set
	if f.truth != "" {
		tf, err := openInput(f.truth, cmd.InOrStdin())
		if err != nil {
			return err
		}
		truth, err = eval.ReadTruth(tf)
		tf.Close()
		if err != nil {
			return err
		}
	}

	var (
		pool *batch.Pool
		bp   *dag.Blueprint
	)
	return c.runTask(cmd, taskSpec{
		withStore: true,
		mutate: func(cfg *Config) {
			if f.workers > 0 {
				cfg.Pool.Workers = f.workers
			}
			if f.mode != "" {
				cfg.Worker.Mode = f.mode
			}
		},
		configure: func(ctx context.Context, s *session) error {
			var err error
			pool, bp, err = startPool(ctx, s, name)
			return err
		},
		run: func(ctx context.Context, s *session) error {
			sinkCfg, err := sink.ParseSpec(f.sink, s.cfg.Sink)
			if err != nil {
				return err
			}
			out, err := sink.Open(ctx, sinkCfg, logger.Get(logger.ComponentSink))
			if err != nil {
				return err
			}
			defer out.Close()

			var report io.Writer = cmd.OutOrStdout()
			if sinkCfg.Kind == sink.KindStdout {
				report = cmd.ErrOrStderr()
			}
			return executeJob(ctx, s, pool, bp, reqs, out, truth, f, report)
		},
	})
}

// startPool loads the stored blueprint, builds the pool and starts it
// through the service manager so shutdown stops it before the store.
func startPool(ctx context.Context, s *session, name string) (*batch.Pool, *dag.Blueprint, error) {
	bp, err := artifact.LoadBlueprint(ctx, s.store.Store(), name)
	if err != nil {
		return nil, nil, err
	}
	wlog := logger.Get(logger.ComponentWorker)
	spawner, err := worker.NewSpawner(s.cfg.Worker, worker.RegistryBuilder(newRegistry()), wlog)
	if err != nil {
		return nil, nil, err
	}
	pool, err := batch.NewPool(s.cfg.Pool, bp, spawner,
		batch.WithLogger(logger.Get(logger.ComponentBatch)),
		batch.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, nil, err
	}
	if err := s.app.Services.Register(pool); err != nil {
		return nil, nil, err
	}
	if err := s.app.Services.StartAll(ctx); err != nil {
		return nil, nil, err
	}
	s.app.Summary.Track(name, "pipeline", fmt.Sprintf("%d nodes, %d trained", len(bp.Definition.Nodes), len(bp.States)))
	return pool, bp, nil
}

func executeJob(ctx context.Context, s *session, pool *batch.Pool, bp *dag.Blueprint, reqs []batch.Request, out sink.Sink, truth map[string]eval.Set, f batchFlags, report io.Writer) error {
	policy := batch.Policy{
		FailFast:       f.failFast,
		Delivery:       batch.InOrder,
		RequestTimeout: f.requestTimeout,
		JobTimeout:     f.jobTimeout,
	}
	if !f.ordered {
		policy.Delivery = batch.AsCompleted
	}

	var measured *measuringSink
	if truth != nil {
		list, err := listOutput(bp.Definition.Name, sortedOutputs(bp.Definition), f.list)
		if err != nil {
			return err
		}
		measured, err = newMeasuringSink(out, truth, list, f.k)
		if err != nil {
			return err
		}
		out = measured
	}

	h, err := pool.Submit(ctx, batch.Job{Requests: reqs, Policy: policy})
	if err != nil {
		return err
	}
	written, drainErr := sink.Drain(ctx, h.Results(), out)
	rep := h.Wait()

	s.log.Info("job finished", logger.Fields(
		logger.FieldJobID, rep.JobID,
		logger.FieldStatus, string(rep.Status),
		"written", written,
		logger.FieldDuration, rep.Duration.Milliseconds(),
	))
	printReport(report, rep)
	if measured != nil {
		printMetrics(report, measured.Summary())
	}

	if drainErr != nil {
		return fmt.Errorf("writing results: %w", drainErr)
	}
	if rep.Status == batch.StatusAborted {
		return fmt.Errorf("job %s aborted: %s", rep.JobID, rep.Reason)
	}
	return nil
}
