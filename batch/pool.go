package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
	"github.com/kbukum/recpipe/observability"
	"github.com/kbukum/recpipe/resilience"
	"github.com/kbukum/recpipe/worker"
)

type poolState int

const (
	stateIdle poolState = iota
	stateRunning
	stateStopping
	stateStopped
)

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// WithMetrics records batch and spawn instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// Pool runs jobs of independent pipeline queries across a fixed set of
// supervised workers, all built from the same blueprint.
type Pool struct {
	cfg      Config
	bp       *dag.Blueprint
	pipeline string
	spawner  worker.Spawner
	log      *logger.Logger
	metrics  *observability.Metrics

	bulk  *resilience.Bulkhead
	tasks chan *task
	slots []*slot

	sup       *suture.Supervisor
	supCancel context.CancelFunc
	supDone   <-chan error
	starting  sync.WaitGroup

	mu        sync.Mutex
	state     poolState
	jobs      map[string]*Handle
	degraded  int
	lastSpawn error
}

// NewPool creates a pool for bp. Workers are spawned by Start.
func NewPool(cfg Config, bp *dag.Blueprint, spawner worker.Spawner, opts ...Option) (*Pool, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bp == nil || bp.Definition == nil {
		return nil, errors.InvalidInput("blueprint", "a pipeline blueprint is required")
	}
	if spawner == nil {
		return nil, errors.InvalidInput("spawner", "a worker spawner is required")
	}

	p := &Pool{
		cfg:      cfg,
		bp:       bp,
		pipeline: bp.Definition.Name,
		spawner:  spawner,
		tasks:    make(chan *task),
		jobs:     make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get(logger.ComponentBatch)
	}
	p.log = p.log.WithFields(logger.Fields(logger.FieldPipeline, p.pipeline))

	p.bulk = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "batch-inflight",
		MaxConcurrent: cfg.capacity(),
		OnAcquire:     func(string) { p.metrics.AddInFlight(context.Background(), 1) },
		OnRelease:     func(string) { p.metrics.AddInFlight(context.Background(), -1) },
	})
	return p, nil
}

// Name implements component.Managed.
func (p *Pool) Name() string { return "batch-pool" }

// Describe implements component.Describable.
func (p *Pool) Describe() component.Description {
	return component.Description{
		Type:    "pool",
		Details: fmt.Sprintf("pipeline=%s workers=%d mode=%s", p.pipeline, p.cfg.Workers, p.spawner.Mode()),
	}
}

// Start spawns the workers and waits until each slot has either a ready
// worker or has given up. It fails with UNAVAILABLE if no worker came up.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != stateIdle {
		p.mu.Unlock()
		return fmt.Errorf("batch: pool already started")
	}
	p.state = stateRunning
	p.mu.Unlock()

	p.sup = suture.New("batch-pool", suture.Spec{
		EventHook:        p.supervisorEvent,
		FailureThreshold: p.cfg.FailureThreshold,
		FailureDecay:     p.cfg.FailureDecay,
		FailureBackoff:   p.cfg.FailureBackoff,
		Timeout:          p.cfg.ShutdownTimeout,
	})
	p.starting.Add(p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		s := &slot{pool: p, index: i}
		p.slots = append(p.slots, s)
		p.sup.Add(s)
	}

	supCtx, cancel := context.WithCancel(context.Background())
	p.supCancel = cancel
	p.supDone = p.sup.ServeBackground(supCtx)

	started := make(chan struct{})
	go func() {
		p.starting.Wait()
		close(started)
	}()
	select {
	case <-started:
	case <-ctx.Done():
		_ = p.Stop(context.Background())
		return ctx.Err()
	}

	p.mu.Lock()
	allDown := p.degraded == len(p.slots)
	lastErr := p.lastSpawn
	p.mu.Unlock()
	if allDown {
		_ = p.Stop(context.Background())
		return errors.Unavailable(p.Name()).WithCause(lastErr)
	}

	p.log.Info("pool started", logger.Fields("workers", p.cfg.Workers, "mode", p.spawner.Mode()))
	return nil
}

// Stop shuts the pool down: it stops accepting jobs, soft-cancels active
// ones, asks every worker to finish its current unit and exit, waits up to
// the shutdown timeout, then kills what is left and hard-resolves any
// request still outstanding.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state != stateRunning {
		p.mu.Unlock()
		return nil
	}
	p.state = stateStopping
	jobs := p.activeJobs()
	p.mu.Unlock()

	for _, h := range jobs {
		h.stop(Soft, ReasonShutdown, errors.Aborted(ReasonShutdown))
	}
	p.supCancel()

	timer := time.NewTimer(p.cfg.ShutdownTimeout)
	graceful := true
	select {
	case <-p.supDone:
	case <-timer.C:
		graceful = false
	case <-ctx.Done():
		graceful = false
	}
	timer.Stop()

	for _, s := range p.slots {
		s.kill()
	}
	for _, h := range jobs {
		h.stop(Hard, ReasonShutdown, errors.Aborted(ReasonShutdown))
	}
	if !graceful {
		select {
		case <-p.supDone:
		case <-time.After(time.Second):
			p.log.Warn("supervisor did not stop in time")
		}
	}

	p.mu.Lock()
	p.state = stateStopped
	p.mu.Unlock()
	p.log.Info("pool stopped", logger.Fields("graceful", graceful))
	return nil
}

// Health implements component.Managed.
func (p *Pool) Health(_ context.Context) component.Health {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := component.Health{Name: p.Name(), Status: component.StatusHealthy}
	switch {
	case p.state != stateRunning:
		h.Status = component.StatusUnhealthy
		h.Message = "not running"
	case p.degraded == len(p.slots):
		h.Status = component.StatusUnhealthy
		h.Message = "no workers"
	case p.degraded > 0:
		h.Status = component.StatusDegraded
		h.Message = fmt.Sprintf("%d of %d worker slots failed to spawn", p.degraded, len(p.slots))
	}
	return h
}

// InFlight returns the number of requests holding a bulkhead slot.
func (p *Pool) InFlight() int { return p.bulk.InUse() }

// PeakInFlight returns the most requests ever held at once.
func (p *Pool) PeakInFlight() int { return p.bulk.Peak() }

// Submit starts a job and returns its handle. Results stream from the
// handle as they become deliverable. Cancelling ctx hard-cancels the job.
func (p *Pool) Submit(ctx context.Context, job Job) (*Handle, error) {
	if len(job.Requests) == 0 {
		return nil, errors.InvalidInput("requests", "job has no requests")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	p.mu.Lock()
	if p.state != stateRunning || p.degraded == len(p.slots) {
		p.mu.Unlock()
		return nil, errors.Unavailable(p.Name())
	}
	if _, dup := p.jobs[job.ID]; dup {
		p.mu.Unlock()
		return nil, errors.InvalidInput("id", fmt.Sprintf("job %s is already running", job.ID))
	}
	h := newHandle(ctx, p, job, job.Policy.withDefaults(p.cfg))
	p.jobs[job.ID] = h
	p.mu.Unlock()

	h.begin(ctx)
	return h, nil
}

// Run submits job and waits for its report.
func (p *Pool) Run(ctx context.Context, job Job) (*Report, error) {
	h, err := p.Submit(ctx, job)
	if err != nil {
		return nil, err
	}
	return h.Wait(), nil
}

func (p *Pool) forget(h *Handle) {
	p.mu.Lock()
	delete(p.jobs, h.id)
	p.mu.Unlock()
}

// activeJobs must be called with mu held.
func (p *Pool) activeJobs() []*Handle {
	out := make([]*Handle, 0, len(p.jobs))
	for _, h := range p.jobs {
		out = append(out, h)
	}
	return out
}

// send hands t to the next idle worker. It gives up when the job stops;
// the stop has already resolved the request.
func (p *Pool) send(t *task) {
	select {
	case p.tasks <- t:
	case <-t.h.stopped.Done():
	}
}

func (p *Pool) slotDegraded(s *slot, err error) {
	p.mu.Lock()
	p.degraded++
	p.lastSpawn = err
	allDown := p.degraded == len(p.slots)
	var jobs []*Handle
	if allDown && p.state == stateRunning {
		jobs = p.activeJobs()
	}
	p.mu.Unlock()

	p.log.Error("worker slot gave up spawning", logger.Fields("slot", s.index, logger.FieldError, err.Error()))
	for _, h := range jobs {
		h.stop(Hard, ReasonUnavailable, errors.Unavailable(p.Name()).WithCause(err))
	}
}

func (p *Pool) supervisorEvent(e suture.Event) {
	p.log.Warn(e.String(), e.Map())
}
