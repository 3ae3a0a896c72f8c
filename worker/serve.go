package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
)

// BuildFunc rebuilds a private pipeline from a blueprint.
type BuildFunc func(bp *dag.Blueprint) (*dag.Pipeline, error)

// RegistryBuilder builds blueprints through reg.
func RegistryBuilder(reg *component.Registry) BuildFunc {
	return func(bp *dag.Blueprint) (*dag.Pipeline, error) {
		return bp.Build(reg)
	}
}

// Serve is the worker side of the protocol. It reads init from r, builds
// the pipeline, answers ready and then runs work units one at a time until
// the parent sends shutdown or closes r. Heartbeats are written to w from a
// separate goroutine for the whole session.
//
// A result that cannot be encoded is answered with an INVALID_OUTPUT error
// for that unit; the worker keeps serving. Serve does not recover panics: a
// panicking component takes the worker down, and the parent sees a lost
// connection.
func Serve(ctx context.Context, r io.Reader, w io.Writer, build BuildFunc, log *logger.Logger) error {
	out := &frameWriter{w: w}

	first, err := ReadFrame(r)
	if err != nil {
		return fmt.Errorf("worker: reading init: %w", err)
	}
	if first.Kind != KindInit || first.Init == nil {
		return fmt.Errorf("worker: expected init frame, got %q", first.Kind)
	}
	init := first.Init

	p, err := build(init.Blueprint)
	if err != nil {
		_ = out.write(&Frame{Kind: KindError, Worker: init.WorkerID, Error: errors.From(err).ToPayload()})
		return err
	}

	log = log.WithFields(logger.Fields(logger.FieldWorker, init.WorkerID, logger.FieldPipeline, p.Name()))
	exec := dag.NewExecutor(dag.WithLogger(log))
	if err := out.write(&Frame{Kind: KindReady, Worker: init.WorkerID}); err != nil {
		return err
	}
	log.Debug("worker ready")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	frames := make(chan *Frame)
	g.Go(func() error {
		defer close(frames)
		for {
			f, err := ReadFrame(r)
			if err != nil {
				if stderrors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("worker: reading frame: %w", err)
			}
			select {
			case frames <- f:
			case <-gctx.Done():
				return nil
			}
		}
	})
	g.Go(func() error {
		return heartbeat(gctx, out, init.Heartbeat)
	})

	err = serveLoop(gctx, frames, out, exec, p, log)
	cancel()
	if gerr := g.Wait(); err == nil {
		err = gerr
	}
	return err
}

func serveLoop(ctx context.Context, frames <-chan *Frame, out *frameWriter, exec *dag.Executor, p *dag.Pipeline, log *logger.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			switch f.Kind {
			case KindWork:
				if f.Work == nil {
					continue
				}
				buf, err := encodeResult(runUnit(ctx, exec, p, f.Work), log)
				if err != nil {
					return err
				}
				if err := out.writeEncoded(buf); err != nil {
					return err
				}
			case KindShutdown:
				log.Debug("shutdown requested")
				return out.write(&Frame{Kind: KindAck})
			case KindHeartbeat:
			default:
				log.Warn("unexpected frame", logger.Fields("kind", string(f.Kind)))
			}
		}
	}
}

func runUnit(ctx context.Context, exec *dag.Executor, p *dag.Pipeline, u *WorkUnit) *WorkResult {
	start := time.Now()
	ctx = logger.ContextWithJobID(ctx, u.Job)

	res, err := exec.Run(ctx, p, u.Params)
	wr := &WorkResult{Sequence: u.Sequence, Duration: time.Since(start)}
	if err != nil {
		wr.Error = errors.From(err).ToPayload()
		return wr
	}
	wr.Outputs = res.Outputs
	return wr
}

// encodeResult encodes a result frame. When the outputs do not encode, the
// first offending output (by name) is reported instead.
func encodeResult(res *WorkResult, log *logger.Logger) ([]byte, error) {
	buf, err := encodeFrame(&Frame{Kind: KindResult, Result: res})
	if err == nil {
		return buf, nil
	}
	name, cause := unencodableOutput(res.Outputs)
	if name == "" {
		cause = err
	}
	log.Warn("result not encodable", logger.Fields("seq", res.Sequence, "output", name, logger.FieldError, cause.Error()))
	return encodeFrame(&Frame{Kind: KindResult, Result: &WorkResult{
		Sequence: res.Sequence,
		Duration: res.Duration,
		Error:    errors.InvalidOutput(name, cause).ToPayload(),
	}})
}

func unencodableOutput(outputs map[string]any) (string, error) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := json.Marshal(outputs[name]); err != nil {
			return name, err
		}
	}
	return "", nil
}

func heartbeat(ctx context.Context, out *frameWriter, every time.Duration) error {
	if every <= 0 {
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := out.write(&Frame{Kind: KindHeartbeat}); err != nil {
				return fmt.Errorf("worker: heartbeat: %w", err)
			}
		}
	}
}
