package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kbukum/recpipe/dag"
	"github.com/kbukum/recpipe/logger"
	"github.com/kbukum/recpipe/process"
)

// Environment passed to worker processes.
const (
	EnvWorkerID = "RECPIPE_WORKER_ID"
	EnvLogLevel = "RECPIPE_WORKER_LOG_LEVEL"
)

// Spawner starts workers and completes the init handshake with them.
type Spawner interface {
	Spawn(ctx context.Context, id string, bp *dag.Blueprint) (*Conn, error)
	Mode() string
}

// NewSpawner returns the spawner for cfg.Mode. build is only used in local
// mode; process workers rebuild through their own registry.
func NewSpawner(cfg Config, build BuildFunc, log *logger.Logger) (Spawner, error) {
	cfg.ApplyDefaults()
	switch cfg.Mode {
	case ModeLocal:
		return &LocalSpawner{Build: build, Log: log, Config: cfg}, nil
	case ModeProcess:
		return &ProcessSpawner{Binary: cfg.Binary, Log: log, Config: cfg}, nil
	default:
		return nil, fmt.Errorf("worker: unknown mode %q", cfg.Mode)
	}
}

func connect(ctx context.Context, c *Conn, id string, bp *dag.Blueprint, cfg Config) (*Conn, error) {
	init := &Init{WorkerID: id, Blueprint: bp, Heartbeat: cfg.HeartbeatInterval}
	if err := c.handshake(ctx, init, cfg.StartTimeout); err != nil {
		_ = c.Kill()
		return nil, err
	}
	return c, nil
}

// --- local ---

// LocalSpawner runs each worker as a goroutine speaking the wire protocol
// over a pair of in-memory pipes. A panicking component ends that worker
// alone: the panic is logged and both pipes are closed.
type LocalSpawner struct {
	Build  BuildFunc
	Log    *logger.Logger
	Config Config
}

// Mode implements Spawner.
func (s *LocalSpawner) Mode() string { return ModeLocal }

// Spawn implements Spawner.
func (s *LocalSpawner) Spawn(ctx context.Context, id string, bp *dag.Blueprint) (*Conn, error) {
	cfg := s.Config
	cfg.ApplyDefaults()
	log := s.Log
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithFields(logger.Fields(logger.FieldWorker, id))

	childR, parentW := io.Pipe()
	parentR, childW := io.Pipe()

	wctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer func() {
			if r := recover(); r != nil {
				log.Error("worker crashed", logger.Fields("panic", fmt.Sprint(r)))
				err := fmt.Errorf("worker %s crashed: %v", id, r)
				childW.CloseWithError(err)
				childR.CloseWithError(err)
			}
		}()
		if err := Serve(wctx, childR, childW, s.Build, log); err != nil {
			log.Debug("worker exited", logger.Fields(logger.FieldError, err.Error()))
		}
		childW.Close()
		childR.Close()
	}()

	stop := func(graceful bool) error {
		parentW.Close()
		if graceful {
			timer := time.NewTimer(cfg.GracePeriod)
			select {
			case <-exited:
			case <-timer.C:
			}
			timer.Stop()
		}
		cancel()
		parentR.CloseWithError(fmt.Errorf("worker %s stopped", id))
		return nil
	}

	return connect(ctx, newConn(id, parentR, parentW, cfg.HeartbeatTimeout, stop), id, bp, cfg)
}

// --- process ---

// ProcessSpawner runs each worker as a child process executing the worker
// subcommand. Frames travel over the child's stdin and stdout; its stderr
// carries JSON log lines that are forwarded to Log tagged with the worker
// id and pid.
type ProcessSpawner struct {
	// Binary defaults to the running executable.
	Binary string
	// Args defaults to ["worker"].
	Args   []string
	Env    []string
	Log    *logger.Logger
	Config Config
}

// Mode implements Spawner.
func (s *ProcessSpawner) Mode() string { return ModeProcess }

// Spawn implements Spawner.
func (s *ProcessSpawner) Spawn(ctx context.Context, id string, bp *dag.Blueprint) (*Conn, error) {
	cfg := s.Config
	cfg.ApplyDefaults()
	log := s.Log
	if log == nil {
		log = logger.NewNop()
	}

	bin := s.Binary
	if bin == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("worker: resolving executable: %w", err)
		}
		bin = exe
	}
	args := s.Args
	if args == nil {
		args = []string{"worker"}
	}
	env := append([]string{EnvWorkerID + "=" + id, EnvLogLevel + "=" + cfg.LogLevel}, s.Env...)

	child, err := process.Start(process.Command{
		Binary:      bin,
		Args:        args,
		Env:         env,
		GracePeriod: cfg.GracePeriod,
	})
	if err != nil {
		return nil, err
	}
	go forwardLogs(child.Stderr, log, logger.Fields(logger.FieldWorker, id, logger.FieldPID, child.Pid()))

	stop := func(graceful bool) error {
		_ = child.Stdin.Close()
		var err error
		killed := !graceful
		if graceful {
			timer := time.NewTimer(cfg.GracePeriod)
			select {
			case <-child.Done():
			case <-timer.C:
				killed, err = child.Terminate()
			}
			timer.Stop()
		} else {
			err = child.Kill()
		}
		_ = child.Stdout.Close()
		log.Debug("worker process stopped", logger.Fields(
			logger.FieldWorker, id, "uptime", child.Uptime().String(), "killed", killed))
		return err
	}

	return connect(ctx, newConn(id, child.Stdout, child.Stdin, cfg.HeartbeatTimeout, stop), id, bp, cfg)
}

func forwardLogs(r io.ReadCloser, log *logger.Logger, fields map[string]interface{}) {
	defer r.Close()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		log.Forward(sc.Bytes(), fields)
	}
}

// RunChild is the body of the worker subcommand: it serves the protocol on
// r and w and writes JSON logs to stderr for the parent to forward.
func RunChild(ctx context.Context, r io.Reader, w io.Writer, stderr io.Writer, build BuildFunc, level string) error {
	log := logger.NewWithWriter(&logger.Config{Level: level, Format: logger.FormatJSON, Timestamp: true}, "worker", stderr)
	if err := Serve(ctx, r, w, build, log); err != nil {
		log.Error("worker exiting", logger.Fields(logger.FieldError, err.Error()))
		return err
	}
	return nil
}
