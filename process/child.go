package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrNotRunning is returned when signalling a process that already exited.
var ErrNotRunning = errors.New("process: not running")

// Child is a long-running subprocess connected through pipes. It runs in
// its own process group so that signals reach the whole tree.
type Child struct {
	// Stdin writes to the child's standard input.
	Stdin io.WriteCloser
	// Stdout reads the child's standard output until it exits.
	Stdout io.ReadCloser
	// Stderr reads the child's standard error until it exits.
	Stderr io.ReadCloser

	cmd   *exec.Cmd
	grace time.Duration
	start time.Time

	done     chan struct{}
	waitErr  error
	exitCode int
	killOnce sync.Once
}

// Start launches cmd with piped stdio. The pipes are plain OS pipes owned
// by the caller: Stdout and Stderr reach EOF when the child exits, whether
// or not Wait has been called.
func Start(cmd Command) (*Child, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}

	c := exec.Command(cmd.Binary, cmd.Args...) //nolint:gosec // dynamic args are the purpose of this package
	c.Dir = cmd.Dir
	c.Env = mergeEnv(cmd.Env)
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdin pipe: %w", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		closeAll(inR, inW)
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		closeAll(inR, inW, outR, outW)
		return nil, fmt.Errorf("process: stderr pipe: %w", err)
	}
	c.Stdin, c.Stdout, c.Stderr = inR, outW, errW

	if err := c.Start(); err != nil {
		closeAll(inR, inW, outR, outW, errR, errW)
		return nil, fmt.Errorf("process: start %s: %w", cmd.Binary, err)
	}
	// The child holds its own copies now.
	closeAll(inR, outW, errW)

	child := &Child{
		Stdin:    inW,
		Stdout:   outR,
		Stderr:   errR,
		cmd:      c,
		grace:    cmd.grace(),
		start:    time.Now(),
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go child.reap()
	return child, nil
}

func (c *Child) reap() {
	err := c.cmd.Wait()
	c.waitErr = err
	if c.cmd.ProcessState != nil {
		c.exitCode = c.cmd.ProcessState.ExitCode()
	}
	close(c.done)
}

// Pid returns the child's process id.
func (c *Child) Pid() int { return c.cmd.Process.Pid }

// Done is closed when the child has exited.
func (c *Child) Done() <-chan struct{} { return c.done }

// Wait blocks until the child exits and returns its exit error.
func (c *Child) Wait() error {
	<-c.done
	return c.waitErr
}

// ExitCode returns the exit code, or -1 while running or when killed by a
// signal.
func (c *Child) ExitCode() int {
	select {
	case <-c.done:
		return c.exitCode
	default:
		return -1
	}
}

// Uptime returns how long the child has been running.
func (c *Child) Uptime() time.Duration { return time.Since(c.start) }

// Terminate sends SIGTERM to the process group and escalates to SIGKILL if
// the child has not exited after the grace period. It returns once the
// child is gone. It reports whether the child had to be killed.
func (c *Child) Terminate() (killed bool, err error) {
	if err := c.signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, ErrNotRunning) {
			return false, nil
		}
		return false, err
	}

	timer := time.NewTimer(c.grace)
	defer timer.Stop()
	select {
	case <-c.done:
		return false, nil
	case <-timer.C:
	}
	return true, c.Kill()
}

// Kill sends SIGKILL to the process group and waits for the child to exit.
func (c *Child) Kill() error {
	var err error
	c.killOnce.Do(func() {
		err = c.signal(syscall.SIGKILL)
		if errors.Is(err, ErrNotRunning) {
			err = nil
		}
	})
	<-c.done
	return err
}

// Close releases the parent's pipe ends. It does not stop the child.
func (c *Child) Close() error {
	return errors.Join(c.Stdin.Close(), c.Stdout.Close(), c.Stderr.Close())
}

func (c *Child) signal(sig syscall.Signal) error {
	select {
	case <-c.done:
		return ErrNotRunning
	default:
	}
	if err := syscall.Kill(-c.cmd.Process.Pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return ErrNotRunning
		}
		return fmt.Errorf("process: signal %s: %w", sig, err)
	}
	return nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
