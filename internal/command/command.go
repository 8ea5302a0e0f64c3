// Package command launches a single attempt of a job's test command.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// JobEnv is the environment variable carrying the job name to the command.
const JobEnv = "TESTGATE_JOB"

// defaultWaitDelay bounds how long Wait keeps draining output pipes after
// the attempt context ends.
const defaultWaitDelay = 10 * time.Second

// ErrEmptyCommand is returned when a job has no command to launch.
var ErrEmptyCommand = errors.New("job command is empty")

// Runner runs one attempt of a job. A nil error means the attempt passed.
type Runner interface {
	Run(ctx context.Context, job types.Job) error
}

// ShellRunner runs job commands through sh -c. The job name is passed as
// the first positional parameter ($1) and in TESTGATE_JOB.
type ShellRunner struct {
	shell     string
	stdout    io.Writer
	stderr    io.Writer
	env       []string
	waitDelay time.Duration
}

// ShellOption configures a ShellRunner.
type ShellOption func(*ShellRunner)

// WithShell overrides the shell binary (default "sh").
func WithShell(shell string) ShellOption {
	return func(r *ShellRunner) { r.shell = shell }
}

// WithOutput sets where command output is written.
func WithOutput(stdout, stderr io.Writer) ShellOption {
	return func(r *ShellRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithEnv appends extra KEY=VALUE entries to the inherited environment.
func WithEnv(env ...string) ShellOption {
	return func(r *ShellRunner) { r.env = append(r.env, env...) }
}

// WithWaitDelay overrides how long output pipes may drain after kill.
func WithWaitDelay(d time.Duration) ShellOption {
	return func(r *ShellRunner) { r.waitDelay = d }
}

// NewShellRunner creates a ShellRunner writing to the process stdout/stderr.
func NewShellRunner(opts ...ShellOption) *ShellRunner {
	r := &ShellRunner{
		shell:     "sh",
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		waitDelay: defaultWaitDelay,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes the job command once. The attempt is bound to ctx: when ctx
// ends the command and every process it started are killed.
func (r *ShellRunner) Run(ctx context.Context, job types.Job) error {
	if job.Command == "" {
		return ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, r.shell, "-c", job.Command, "testgate", job.Name)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Env = append(cmd.Env, JobEnv+"="+job.Name)
	cmd.WaitDelay = r.waitDelay
	isolate(cmd)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", job.Name, err)
	}
	return nil
}

// ClassifyFailure categorizes an attempt error. ctx is the attempt context.
func ClassifyFailure(ctx context.Context, err error) types.FailureCategory {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return types.FailureTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return types.FailureCancelled
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return types.FailureExit
	}
	return types.FailureLaunch
}
