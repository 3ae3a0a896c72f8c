package process_test

import (
	"bufio"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/recpipe/process"
)

func TestStartEchoesThroughPipes(t *testing.T) {
	child, err := process.Start(process.Command{Binary: "cat"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer child.Close()

	if _, err := io.WriteString(child.Stdin, "hello\n"); err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(child.Stdout).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "hello\n" {
		t.Fatalf("expected echo, got %q", line)
	}

	if err := child.Stdin.Close(); err != nil {
		t.Fatal(err)
	}
	if err := child.Wait(); err != nil {
		t.Fatalf("cat should exit cleanly on EOF: %v", err)
	}
	if child.ExitCode() != 0 {
		t.Fatalf("expected exit code 0, got %d", child.ExitCode())
	}
}

func TestStartCapturesStderr(t *testing.T) {
	child, err := process.Start(process.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo oops 1>&2; exit 3"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer child.Close()

	out, err := io.ReadAll(child.Stderr)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(out)) != "oops" {
		t.Fatalf("unexpected stderr %q", out)
	}
	if err := child.Wait(); err == nil {
		t.Fatal("expected exit error")
	}
	if child.ExitCode() != 3 {
		t.Fatalf("expected exit code 3, got %d", child.ExitCode())
	}
}

func TestStartEnv(t *testing.T) {
	child, err := process.Start(process.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo $RECPIPE_TEST_VAR"},
		Env:    []string{"RECPIPE_TEST_VAR=worker"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer child.Close()

	out, _ := io.ReadAll(child.Stdout)
	if strings.TrimSpace(string(out)) != "worker" {
		t.Fatalf("expected env var, got %q", out)
	}
	child.Wait()
}

func TestTerminateGraceful(t *testing.T) {
	child, err := process.Start(process.Command{
		Binary:      "sleep",
		Args:        []string{"10"},
		GracePeriod: 2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer child.Close()

	killed, err := child.Terminate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if killed {
		t.Fatal("sleep should exit on SIGTERM")
	}
	select {
	case <-child.Done():
	default:
		t.Fatal("expected child to be gone")
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	child, err := process.Start(process.Command{
		Binary:      "sh",
		Args:        []string{"-c", `trap "" TERM; echo ready; sleep 10`},
		GracePeriod: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer child.Close()

	// Wait for the trap to be installed.
	if _, err := bufio.NewReader(child.Stdout).ReadString('\n'); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	killed, err := child.Terminate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !killed {
		t.Fatal("expected escalation to SIGKILL")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("terminate took too long")
	}
	if child.ExitCode() != -1 {
		t.Fatalf("expected -1 for a signalled child, got %d", child.ExitCode())
	}
}

func TestKillAfterExit(t *testing.T) {
	child, err := process.Start(process.Command{Binary: "true"})
	if err != nil {
		t.Fatal(err)
	}
	defer child.Close()
	child.Wait()

	if err := child.Kill(); err != nil {
		t.Fatalf("killing an exited child should be a no-op, got %v", err)
	}
	if killed, err := child.Terminate(); killed || err != nil {
		t.Fatalf("terminating an exited child should be a no-op, got %v %v", killed, err)
	}
}

func TestStartRequiresBinary(t *testing.T) {
	if _, err := process.Start(process.Command{}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := process.Start(process.Command{Binary: "/definitely/not/here"}); err == nil {
		t.Fatal("expected start error")
	}
}
