// Package runner executes the external apktool binary as a bounded,
// cancellable subprocess and normalizes every outcome into the bridge's
// error taxonomy.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/apkbridge/apkbridge/internal/log"
	"github.com/apkbridge/apkbridge/internal/protocol"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks github.com/apkbridge/apkbridge/internal/runner Runner

// Invocation describes one subprocess execution request.
type Invocation struct {
	Executable string
	Args       []string
	Dir        string
	Timeout    time.Duration
}

// Outcome summarizes a completed (or terminated) subprocess. Stdout and
// Stderr are capped; pathological output is truncated, never buffered whole.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner is the seam handlers use to reach the external executable.
type Runner interface {
	// Run blocks until the process exits, the timeout elapses, or ctx is
	// cancelled. A nil error means a clean zero exit; otherwise the error is
	// a typed CallError (ProcessFailure, Timeout, ToolUnavailable) and the
	// Outcome still carries whatever output was captured.
	Run(ctx context.Context, inv Invocation) (Outcome, error)
}

// Options bound subprocess behavior. Zero values take defaults.
type Options struct {
	// Grace is the window between SIGTERM and SIGKILL during termination.
	Grace time.Duration
	// MaxCapture caps each captured output stream in bytes.
	MaxCapture int
}

// ExecRunner runs real subprocesses. It is stateless between calls.
type ExecRunner struct {
	grace      time.Duration
	maxCapture int
	logger     *slog.Logger
}

var _ Runner = (*ExecRunner)(nil)

// New creates an ExecRunner.
func New(opts Options) *ExecRunner {
	if opts.Grace <= 0 {
		opts.Grace = 5 * time.Second
	}
	if opts.MaxCapture <= 0 {
		opts.MaxCapture = 64 * 1024
	}
	return &ExecRunner{
		grace:      opts.Grace,
		maxCapture: opts.MaxCapture,
		logger:     log.WithComponent("runner"),
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Outcome, error) {
	start := time.Now()

	resolved, err := exec.LookPath(inv.Executable)
	if err != nil {
		return Outcome{Duration: time.Since(start)}, protocol.WrapError(
			protocol.KindToolUnavailable, err,
			"executable %q not found or not executable", inv.Executable)
	}

	cmd := exec.Command(resolved, inv.Args...)
	cmd.Dir = inv.Dir

	stdout := newCappedBuffer(r.maxCapture)
	stderr := newCappedBuffer(r.maxCapture)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("spawning process",
		"executable", resolved, "args", inv.Args, "dir", inv.Dir, "timeout", inv.Timeout)

	if err := cmd.Start(); err != nil {
		kind := protocol.KindToolUnavailable
		if !errors.Is(err, os.ErrPermission) && !errors.Is(err, exec.ErrNotFound) && !errors.Is(err, os.ErrNotExist) {
			kind = protocol.KindInternal
		}
		return Outcome{Duration: time.Since(start)}, protocol.WrapError(kind, err,
			"start %q: %v", inv.Executable, err)
	}

	timeoutTimer := time.NewTimer(inv.Timeout)
	defer timeoutTimer.Stop()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	select {
	case <-timeoutTimer.C:
		r.terminate(cmd, waitErr)
		out := r.outcome(cmd, stdout, stderr, start)
		return out, protocol.NewError(protocol.KindTimeout,
			"%s timed out after %v", inv.Executable, inv.Timeout).
			WithDetail("stderr_tail", stderr.String())

	case <-ctx.Done():
		r.terminate(cmd, waitErr)
		out := r.outcome(cmd, stdout, stderr, start)
		return out, protocol.WrapError(protocol.KindTimeout, ctx.Err(),
			"%s cancelled: %v", inv.Executable, ctx.Err())

	case err := <-waitErr:
		out := r.outcome(cmd, stdout, stderr, start)
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				out.ExitCode = exitErr.ExitCode()
				return out, protocol.NewError(protocol.KindProcessFailure,
					"%s exited with code %d", inv.Executable, out.ExitCode).
					WithDetail("exit_code", out.ExitCode).
					WithDetail("stderr_tail", out.Stderr)
			}
			return out, protocol.WrapError(protocol.KindInternal, err,
				"wait for %s: %v", inv.Executable, err)
		}
		return out, nil
	}
}

// terminate escalates from SIGTERM to SIGKILL if the process does not exit
// within the grace period, then reaps it.
func (r *ExecRunner) terminate(cmd *exec.Cmd, waitErr <-chan error) {
	if cmd.Process == nil {
		return
	}

	r.logger.Warn("terminating process", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		r.logger.Error("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(r.grace)
	defer grace.Stop()

	select {
	case <-waitErr:
	case <-grace.C:
		r.logger.Warn("process ignored SIGTERM, sending SIGKILL", "pid", cmd.Process.Pid)
		if err := cmd.Process.Kill(); err != nil {
			r.logger.Error("failed to send SIGKILL", "error", err)
		}
		<-waitErr
	}
}

func (r *ExecRunner) outcome(cmd *exec.Cmd, stdout, stderr *cappedBuffer, start time.Time) Outcome {
	out := Outcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	return out
}
