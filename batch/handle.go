package batch

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
	"github.com/kbukum/recpipe/observability"
	"github.com/kbukum/recpipe/worker"
)

type reqState int

const (
	reqPending    reqState = iota // not yet holding a bulkhead slot
	reqQueued                     // holding a slot, waiting for a worker
	reqDispatched                 // running on a worker
	reqResolved
)

// Handle tracks a submitted job. Results stream from Results in the job's
// delivery order; Wait blocks for the final report.
type Handle struct {
	id     string
	pool   *Pool
	job    Job
	policy Policy
	log    *logger.Logger

	results chan Result
	done    chan struct{}

	// stopped is cancelled when the job stops accepting new sends.
	stopped    context.Context
	stopCancel context.CancelFunc

	jc       *observability.JobContext
	span     trace.Span
	timer    *time.Timer
	unwatch  func() bool
	finished sync.Once

	mu        sync.Mutex
	states    []reqState
	held      []bool
	history   [][]Attempt
	out       []Result
	collector *Collector
	resolved  int
	stopMode  CancelMode
	stopErr   *errors.AppError
	reason    string
	report    *Report
}

// newHandle starts the job clock and span, so a handle registered with the
// pool can be stopped before begin runs.
func newHandle(ctx context.Context, p *Pool, job Job, policy Policy) *Handle {
	n := len(job.Requests)
	stopped, cancel := context.WithCancel(context.Background())
	jc := observability.NewJobContext(p.pipeline, job.ID, n)
	_, span := jc.StartSpan(ctx)
	return &Handle{
		id:         job.ID,
		pool:       p,
		job:        job,
		policy:     policy,
		log:        p.log.WithFields(logger.Fields(logger.FieldJobID, job.ID)),
		results:    make(chan Result, n),
		done:       make(chan struct{}),
		stopped:    stopped,
		stopCancel: cancel,
		jc:         jc,
		span:       span,
		states:     make([]reqState, n),
		held:       make([]bool, n),
		history:    make([][]Attempt, n),
		out:        make([]Result, n),
		collector:  NewCollector(n, policy.Delivery),
	}
}

// ID returns the job id.
func (h *Handle) ID() string { return h.id }

// Results streams results as they become deliverable. The channel is
// closed once every request is resolved.
func (h *Handle) Results() <-chan Result { return h.results }

// Done is closed when the job has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job finishes and returns its report.
func (h *Handle) Wait() *Report {
	<-h.done
	return h.report
}

// Cancel stops the job. Unsent requests are dropped as CANCELLED; mode
// decides the fate of dispatched ones.
func (h *Handle) Cancel(mode CancelMode) {
	h.stop(mode, ReasonCancelled, errors.Cancelled("job cancelled"))
}

func (h *Handle) begin(ctx context.Context) {
	h.mu.Lock()
	if h.stopErr != nil {
		// Stopped between registration and begin.
		h.mu.Unlock()
		return
	}
	h.unwatch = context.AfterFunc(ctx, func() {
		h.stop(Hard, ReasonCancelled, errors.Cancelled("context cancelled").WithCause(context.Cause(ctx)))
	})
	if d := h.policy.JobTimeout; d > 0 {
		h.timer = time.AfterFunc(d, func() {
			h.stop(Hard, ReasonTimeout, errors.Aborted(ReasonTimeout).WithDetail("after", d.String()))
		})
	}
	h.mu.Unlock()

	h.log.Debug("job submitted", logger.Fields("requests", len(h.job.Requests), "delivery", h.policy.Delivery.String()))
	go h.feed()
}

// feed acquires a bulkhead slot for each request in sequence order and
// hands it to a worker, blocking while the pool is saturated.
func (h *Handle) feed() {
	bulk := h.pool.bulk
	for seq := range h.job.Requests {
		if err := bulk.Acquire(h.stopped); err != nil {
			return
		}
		h.mu.Lock()
		if h.states[seq] != reqPending {
			h.mu.Unlock()
			_ = bulk.Release()
			return
		}
		h.states[seq] = reqQueued
		h.held[seq] = true
		h.mu.Unlock()

		h.pool.send(&task{h: h, seq: seq, attempt: 1})
	}
}

// dispatch marks seq as running and returns its params. It reports false
// if the request was resolved while waiting for a worker.
func (h *Handle) dispatch(seq int) (map[string]any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.states[seq] != reqQueued {
		return nil, false
	}
	h.states[seq] = reqDispatched
	return h.job.Requests[seq].Params, true
}

// complete records a worker's answer. Late answers for requests already
// resolved by a hard stop are discarded.
func (h *Handle) complete(seq int, att Attempt, res *worker.WorkResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.states[seq] != reqDispatched {
		h.log.Debug("discarding late result", logger.Fields(logger.FieldSequence, seq))
		return
	}
	h.history[seq] = append(h.history[seq], att)
	var err *errors.AppError
	if res.Error != nil {
		err = errors.FromPayload(res.Error)
	}
	h.resolveLocked(seq, res.Outputs, err)
}

// attemptFailed handles a lost worker or a request timeout. The first
// occurrence requeues the request, keeping its bulkhead slot; the second
// is terminal.
func (h *Handle) attemptFailed(t *task, att Attempt, err *errors.AppError) {
	h.mu.Lock()
	if h.states[t.seq] != reqDispatched {
		h.mu.Unlock()
		return
	}
	h.history[t.seq] = append(h.history[t.seq], att)

	requeue := t.attempt < MaxAttempts && h.stopped.Err() == nil &&
		(err.Code == errors.ErrCodeWorkerFailure || err.Code == errors.ErrCodeTimeout)
	if !requeue {
		h.resolveLocked(t.seq, nil, err)
		h.mu.Unlock()
		return
	}
	h.states[t.seq] = reqQueued
	h.mu.Unlock()

	h.pool.metrics.RecordRequeue(context.Background(), string(err.Code))
	h.log.Warn("requeueing request", logger.Fields(
		logger.FieldSequence, t.seq, logger.FieldWorker, att.Worker, "code", string(err.Code)))
	go h.pool.send(&task{h: h, seq: t.seq, attempt: t.attempt + 1})
}

// stop ends the job early. The first stop fixes the reason; a later hard
// stop may still escalate a soft one.
func (h *Handle) stop(mode CancelMode, reason string, err *errors.AppError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.report != nil {
		return
	}
	if h.stopErr == nil {
		h.stopErr = err
		h.reason = reason
		h.stopMode = mode
		h.stopCancel()
		h.log.Info("job stopping", logger.Fields("reason", reason, "hard", mode == Hard))
	} else if mode == Hard {
		h.stopMode = Hard
	}
	h.sweepLocked()
}

// sweepLocked resolves everything the current stop mode no longer waits
// for: unsent requests always, dispatched ones on a hard stop.
func (h *Handle) sweepLocked() {
	for seq, st := range h.states {
		switch {
		case st == reqPending, st == reqQueued:
		case st == reqDispatched && h.stopMode == Hard:
		default:
			continue
		}
		h.resolveLocked(seq, nil, h.stopErr)
		if h.report != nil {
			return
		}
	}
}

func (h *Handle) resolveLocked(seq int, outputs map[string]any, err *errors.AppError) {
	if h.states[seq] == reqResolved {
		return
	}
	h.states[seq] = reqResolved
	if h.held[seq] {
		h.held[seq] = false
		_ = h.pool.bulk.Release()
	}

	r := Result{
		JobID:     h.id,
		RequestID: h.job.Requests[seq].ID,
		Sequence:  seq,
		Outputs:   outputs,
		Err:       err,
		Attempts:  len(h.history[seq]),
		History:   h.history[seq],
	}
	for _, a := range r.History {
		r.Duration += a.Duration
	}
	h.out[seq] = r
	h.resolved++

	status, code := "ok", ""
	if err != nil {
		status, code = "error", string(err.Code)
	}
	h.pool.metrics.RecordRequest(context.Background(), status, code)

	for _, d := range h.collector.Add(r) {
		h.results <- d
	}

	if err != nil && h.policy.FailFast && h.stopErr == nil {
		h.log.Info("failing fast", logger.Fields(logger.FieldSequence, seq, "code", string(err.Code)))
		h.stopErr = errors.Aborted(ReasonFailFast).WithDetail("seq", seq)
		h.reason = ReasonFailFast
		h.stopMode = Hard
		h.stopCancel()
		h.sweepLocked()
	}

	if h.resolved == len(h.states) && h.report == nil {
		h.finishLocked()
	}
}

func (h *Handle) finishLocked() {
	rep := &Report{
		JobID:    h.id,
		Results:  h.out,
		Duration: h.jc.Duration(),
	}
	for _, r := range h.out {
		if r.OK() {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
	}
	switch {
	case h.stopErr != nil:
		rep.Status = StatusAborted
		rep.Reason = h.reason
	case rep.Failed == 0:
		rep.Status = StatusSucceeded
	default:
		rep.Status = StatusPartialFailure
	}
	h.report = rep

	h.finished.Do(func() {
		h.stopCancel()
		if h.timer != nil {
			h.timer.Stop()
		}
		if h.unwatch != nil {
			h.unwatch()
		}
		h.jc.End(h.span, string(rep.Status), rep.Reason)
		close(h.results)
		close(h.done)
		go h.pool.forget(h)
		h.log.Info("job finished", logger.Fields(
			logger.FieldStatus, string(rep.Status), "succeeded", rep.Succeeded, "failed", rep.Failed,
			logger.FieldDuration, rep.Duration.Milliseconds()))
	})
}
