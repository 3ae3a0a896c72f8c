package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"

	"github.com/kbukum/recpipe/errors"
	"github.com/kbukum/recpipe/logger"
	"github.com/kbukum/recpipe/resilience"
	"github.com/kbukum/recpipe/worker"
)

// task is one send of one request.
type task struct {
	h       *Handle
	seq     int
	attempt int
}

// slot is a supervised service owning one worker at a time. It returns an
// error whenever its worker is lost so that the supervisor restarts it
// with a fresh one.
type slot struct {
	pool  *Pool
	index int

	mu    sync.Mutex
	conn  *worker.Conn
	ready sync.Once
}

func (s *slot) String() string { return fmt.Sprintf("worker-slot-%d", s.index) }

// Serve implements suture.Service.
func (s *slot) Serve(ctx context.Context) error {
	p := s.pool
	conn, err := s.spawn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.ready.Do(p.starting.Done)
			return ctx.Err()
		}
		p.slotDegraded(s, err)
		s.ready.Do(p.starting.Done)
		return suture.ErrDoNotRestart
	}
	s.setConn(conn)
	defer s.setConn(nil)
	s.ready.Do(p.starting.Done)

	log := p.log.WithFields(logger.Fields(logger.FieldWorker, conn.ID()))
	log.Debug("worker ready")

	for {
		select {
		case <-ctx.Done():
			sctx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownTimeout)
			err := conn.Shutdown(sctx)
			cancel()
			if err != nil {
				log.Warn("worker did not acknowledge shutdown", logger.Fields(logger.FieldError, err.Error()))
			} else {
				log.Debug("worker shut down")
			}
			return ctx.Err()
		case <-conn.Done():
			_ = conn.Kill()
			log.Warn("worker exited while idle")
			return fmt.Errorf("worker %s exited", conn.ID())
		case t := <-p.tasks:
			if err := s.execute(conn, t); err != nil {
				log.Warn("worker lost", logger.Fields(logger.FieldError, err.Error()))
				return err
			}
		}
	}
}

func (s *slot) spawn(ctx context.Context) (*worker.Conn, error) {
	p := s.pool
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = p.cfg.SpawnAttempts
	cfg.InitialBackoff = p.cfg.SpawnBackoff
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		p.log.Warn("worker spawn failed, retrying", logger.Fields(
			"slot", s.index, logger.FieldAttempt, attempt, logger.FieldError, err.Error(), "backoff", backoff.String()))
	}

	return resilience.Retry(ctx, cfg, func(int) (*worker.Conn, error) {
		id := fmt.Sprintf("w%d-%s", s.index, uuid.NewString()[:8])
		conn, err := p.spawner.Spawn(ctx, id, p.bp)
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordSpawn(ctx, p.spawner.Mode(), status)
		return conn, err
	})
}

// execute runs one task on conn. A non-nil error means conn is dead.
func (s *slot) execute(conn *worker.Conn, t *task) error {
	h := t.h
	params, ok := h.dispatch(t.seq)
	if !ok {
		return nil
	}

	ctx := context.Background()
	cancel := context.CancelFunc(func() {})
	if h.policy.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.policy.RequestTimeout)
	}
	start := time.Now()
	res, err := conn.Do(ctx, worker.WorkUnit{Job: h.id, Sequence: t.seq, Attempt: t.attempt, Params: params})
	cancel()

	att := Attempt{Worker: conn.ID(), Duration: time.Since(start)}
	if err != nil {
		appErr := errors.From(err)
		att.Code = appErr.Code
		h.attemptFailed(t, att, appErr)
		return err
	}
	if res.Error != nil {
		att.Code = res.Error.Code
	}
	h.complete(t.seq, att, res)
	return nil
}

func (s *slot) setConn(c *worker.Conn) {
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
}

func (s *slot) kill() {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c != nil {
		_ = c.Kill()
	}
}
