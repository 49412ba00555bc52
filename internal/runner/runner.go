// Package runner executes external processes on behalf of the git layer.
//
// Every call spawns exactly one OS process with a literal argument vector
// (never a shell), captures stdout and stderr fully, and reports the outcome
// as a result.Result. Nothing crosses the package boundary as a panic:
// missing executables, non-zero exits, timeouts and cancellations all come
// back as a *result.Failure with a distinguishable Kind.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Akashdeep-Patra/gitstate/internal/result"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// waitDelay bounds how long Run waits for output pipes to drain after the
// process has been killed (git may leave children holding them open).
const waitDelay = 2 * time.Second

// Invocation describes a single process execution. It is owned by the
// runner for the duration of Run.
type Invocation struct {
	Executable string
	Args       []string
	Dir        string
	// Timeout kills the process after the given duration. Zero means no
	// per-invocation timeout; the context deadline still applies.
	Timeout time.Duration
	// Env is appended to the inherited environment.
	Env   []string
	Stdin io.Reader

	// OnStdout / OnStderr receive output line by line while the process
	// runs. Lines are split on '\n' and '\r' so git progress meters
	// stream. The full output is captured regardless.
	OnStdout func(line string)
	OnStderr func(line string)
}

// String renders the invocation for logs and error messages.
func (inv Invocation) String() string {
	if len(inv.Args) == 0 {
		return inv.Executable
	}
	return inv.Executable + " " + strings.Join(inv.Args, " ")
}

// Outcome is the immutable record of a finished process.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ExitError is the cause attached to command-failure results.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
}

// Runner executes invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) result.Result[Outcome]
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	logger *zap.Logger
	tracer trace.Tracer
}

// Compile-time check that ExecRunner implements Runner.
var _ Runner = (*ExecRunner)(nil)

// NewExecRunner creates a runner. A nil logger disables logging.
func NewExecRunner(logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{
		logger: logger.Named("runner"),
		tracer: otel.Tracer("github.com/Akashdeep-Patra/gitstate/internal/runner"),
	}
}

// Run executes inv and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) result.Result[Outcome] {
	id := uuid.NewString()
	log := r.logger.With(
		zap.String("invocation", id),
		zap.String("command", inv.String()),
		zap.String("dir", inv.Dir),
	)

	ctx, span := r.tracer.Start(ctx, "runner.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("invocation.id", id),
		attribute.String("process.executable", inv.Executable),
		attribute.StringSlice("process.args", inv.Args),
	)

	if inv.Dir != "" {
		if info, err := os.Stat(inv.Dir); err != nil || !info.IsDir() {
			span.SetStatus(codes.Error, "missing working directory")
			return result.Fail[Outcome](result.NewFailure(result.KindCommandFailure,
				fmt.Sprintf("working directory does not exist: %s", inv.Dir)).WithCause(err))
		}
	}

	path, err := exec.LookPath(inv.Executable)
	if err != nil {
		log.Warn("executable not found", zap.Error(err))
		span.SetStatus(codes.Error, "tool missing")
		return result.Fail[Outcome](result.NewFailure(result.KindToolMissing,
			fmt.Sprintf("%s not found: install it or configure an absolute path", inv.Executable)).WithCause(err))
	}

	runCtx := ctx
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdin = inv.Stdin
	cmd.Cancel = func() error { return cmd.Process.Kill() }
	cmd.WaitDelay = waitDelay
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = sink(&stdout, inv.OnStdout)
	cmd.Stderr = sink(&stderr, inv.OnStderr)

	log.Debug("starting")
	start := time.Now()
	runErr := cmd.Run()
	flush(cmd.Stdout)
	flush(cmd.Stderr)

	outcome := Outcome{
		ExitCode: exitCode(cmd, runErr),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	span.SetAttributes(
		attribute.Int("process.exit_code", outcome.ExitCode),
		attribute.Int64("process.duration_ms", outcome.Duration.Milliseconds()),
	)
	log = log.With(zap.Int("exit_code", outcome.ExitCode), zap.Duration("duration", outcome.Duration))

	// Context errors take priority: a killed process also reports a
	// non-zero exit, but the caller asked for the kill.
	switch {
	case runErr == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		log.Warn("timed out")
		span.SetStatus(codes.Error, "timeout")
		return result.Fail[Outcome](result.NewFailure(result.KindTimeout,
			fmt.Sprintf("%s timed out after %s", inv.String(), outcome.Duration.Round(time.Millisecond))).
			WithDetail(outcome.Stderr).WithCause(context.DeadlineExceeded))
	case errors.Is(runCtx.Err(), context.Canceled):
		log.Debug("cancelled")
		span.SetStatus(codes.Error, "cancelled")
		return result.Fail[Outcome](result.NewFailure(result.KindCancelled,
			fmt.Sprintf("%s cancelled", inv.String())).
			WithDetail(outcome.Stderr).WithCause(context.Canceled))
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			log.Error("failed to run", zap.Error(runErr))
			span.RecordError(runErr)
			span.SetStatus(codes.Error, "start failed")
			return result.Fail[Outcome](result.NewFailure(result.KindCommandFailure,
				fmt.Sprintf("%s: %v", inv.String(), runErr)).WithCause(runErr))
		}
		// Some refusals (rebase --continue with unmerged paths) only
		// write to stdout.
		msg, detail := strings.TrimSpace(outcome.Stderr), outcome.Stderr
		if msg == "" {
			msg, detail = strings.TrimSpace(outcome.Stdout), outcome.Stdout
		}
		if msg == "" {
			msg = fmt.Sprintf("%s: exit status %d", inv.String(), outcome.ExitCode)
		}
		log.Debug("exited non-zero", zap.String("stderr", outcome.Stderr))
		span.SetStatus(codes.Error, "non-zero exit")
		return result.Fail[Outcome](result.NewFailure(result.KindCommandFailure, msg).
			WithDetail(detail).
			WithCause(&ExitError{Command: inv.String(), ExitCode: outcome.ExitCode, Stderr: outcome.Stderr}))
	}

	log.Debug("finished")
	return result.Success(outcome)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
