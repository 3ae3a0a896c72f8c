package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/recpipe/errors"
)

// Connection errors. Both surface wrapped in a WORKER_FAILURE AppError.
var (
	ErrWorkerLost    = stderrors.New("worker lost")
	ErrHeartbeatLost = stderrors.New("worker heartbeat lost")
)

// Conn is the parent side of one worker connection. It carries at most one
// outstanding work unit at a time and is not safe for concurrent Do calls.
type Conn struct {
	id      string
	out     *frameWriter
	frames  chan *Frame
	timeout time.Duration

	lastFrame atomic.Int64
	done      chan struct{}
	readErr   error

	stop     func(graceful bool) error
	stopOnce sync.Once
	stopErr  error
	closing  chan struct{}
}

// newConn starts reading frames from r. stop tears the transport down;
// graceful is true after a shutdown handshake.
func newConn(id string, r io.Reader, w io.Writer, heartbeatTimeout time.Duration, stop func(graceful bool) error) *Conn {
	c := &Conn{
		id:      id,
		out:     &frameWriter{w: w},
		frames:  make(chan *Frame, 4),
		timeout: heartbeatTimeout,
		done:    make(chan struct{}),
		stop:    stop,
		closing: make(chan struct{}),
	}
	c.touch()
	go c.readLoop(r)
	return c
}

func (c *Conn) readLoop(r io.Reader) {
	defer close(c.done)
	for {
		f, err := ReadFrame(r)
		if err != nil {
			c.readErr = err
			return
		}
		c.touch()
		if f.Kind == KindHeartbeat {
			continue
		}
		select {
		case c.frames <- f:
		case <-c.closing:
			return
		}
	}
}

func (c *Conn) touch() { c.lastFrame.Store(time.Now().UnixNano()) }

func (c *Conn) silence() time.Duration {
	return time.Since(time.Unix(0, c.lastFrame.Load()))
}

// ID returns the worker id.
func (c *Conn) ID() string { return c.id }

// Done is closed when the worker's output stream ends.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) handshake(ctx context.Context, init *Init, timeout time.Duration) error {
	if err := c.out.write(&Frame{Kind: KindInit, Init: init}); err != nil {
		return c.lost(err)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case f := <-c.frames:
			switch f.Kind {
			case KindReady:
				return nil
			case KindError:
				return errors.WorkerFailure(c.id, errors.FromPayload(f.Error)).WithDetail("phase", "init")
			}
		case <-c.done:
			return c.lost(c.readErr)
		case <-timer.C:
			return errors.Timeout("worker start", timeout).WithDetail("worker", c.id)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Do sends one unit and waits for its result. A lost stream, heartbeat
// silence beyond the timeout or ctx expiry kill the connection: the first
// two return WORKER_FAILURE, a deadline returns TIMEOUT.
func (c *Conn) Do(ctx context.Context, unit WorkUnit) (*WorkResult, error) {
	if err := c.out.write(&Frame{Kind: KindWork, Work: &unit}); err != nil {
		c.Kill()
		return nil, c.lost(err)
	}

	check := c.timeout / 4
	if check < 10*time.Millisecond {
		check = 10 * time.Millisecond
	}
	ticker := time.NewTicker(check)
	defer ticker.Stop()

	for {
		select {
		case f := <-c.frames:
			switch f.Kind {
			case KindResult:
				if f.Result != nil && f.Result.Sequence == unit.Sequence {
					return f.Result, nil
				}
			case KindError:
				c.Kill()
				return nil, errors.WorkerFailure(c.id, errors.FromPayload(f.Error))
			}
		case <-c.done:
			select {
			case f := <-c.frames:
				if f.Kind == KindResult && f.Result != nil && f.Result.Sequence == unit.Sequence {
					c.Kill()
					return f.Result, nil
				}
			default:
			}
			c.Kill()
			return nil, c.lost(c.readErr)
		case <-ticker.C:
			if c.timeout > 0 && c.silence() > c.timeout {
				c.Kill()
				return nil, errors.WorkerFailure(c.id, ErrHeartbeatLost).WithDetail("silence", c.silence().String())
			}
		case <-ctx.Done():
			c.Kill()
			if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, errors.Timeout("request", 0).WithCause(ctx.Err()).WithDetail("worker", c.id)
			}
			return nil, errors.Cancelled("request").WithCause(ctx.Err()).WithDetail("worker", c.id)
		}
	}
}

// Shutdown asks the worker to exit after its current unit and waits for
// the acknowledgement, then releases the transport. If ctx ends first the
// worker is killed.
func (c *Conn) Shutdown(ctx context.Context) error {
	if err := c.out.write(&Frame{Kind: KindShutdown}); err != nil {
		return c.Kill()
	}
	for {
		select {
		case f := <-c.frames:
			if f.Kind == KindAck {
				return c.close(true)
			}
		case <-c.done:
			return c.close(true)
		case <-ctx.Done():
			c.Kill()
			return ctx.Err()
		}
	}
}

// Kill tears the connection down immediately.
func (c *Conn) Kill() error {
	return c.close(false)
}

func (c *Conn) close(graceful bool) error {
	c.stopOnce.Do(func() {
		close(c.closing)
		c.stopErr = c.stop(graceful)
	})
	return c.stopErr
}

func (c *Conn) lost(cause error) *errors.AppError {
	if cause == nil {
		cause = io.EOF
	}
	return errors.WorkerFailure(c.id, fmt.Errorf("%w: %v", ErrWorkerLost, cause))
}
