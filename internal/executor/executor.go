// Package executor runs one job to a final outcome with bounded retries.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/testgate/internal/command"
	"github.com/dwsmith1983/testgate/internal/metrics"
	"github.com/dwsmith1983/testgate/internal/retry"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// Executor runs a job's command up to MaxAttempts times, stopping at the
// first passing attempt. Only the final outcome is returned; per-attempt
// detail goes to logs and metrics.
type Executor struct {
	runner  command.Runner
	policy  types.RetryPolicy
	logger  *slog.Logger
	metrics *metrics.Recorder
	sleep   func(context.Context, time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithPolicy sets the fleet-wide retry policy. Per-job fields override it.
func WithPolicy(p types.RetryPolicy) Option {
	return func(e *Executor) { e.policy = p }
}

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Executor) { e.metrics = m }
}

// New creates an Executor that launches attempts through runner.
func New(runner command.Runner, opts ...Option) *Executor {
	e := &Executor{
		runner: runner,
		policy: retry.DefaultPolicy(),
		logger: slog.Default(),
		sleep:  retry.Sleep,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs job to a final outcome: succeeded on the first passing
// attempt, failed once attempts are exhausted or ctx ends.
func (e *Executor) Execute(ctx context.Context, job types.Job) types.JobOutcome {
	p := retry.ForJob(e.policy, job)
	logger := e.logger.With("job", job.Name)

	b, err := retry.NewBackOff(p)
	if err != nil {
		logger.Warn("invalid backoff, retrying immediately", "error", err)
		b = &backoff.ZeroBackOff{}
	}

	ctx, span := metrics.Tracer().Start(ctx, "job.execute", trace.WithAttributes(
		attribute.String("job", job.Name),
		attribute.Int("max_attempts", p.MaxAttempts),
	))
	defer span.End()

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			logger.Warn("run ended, abandoning remaining attempts", "attempt", attempt, "error", context.Cause(ctx))
			break
		}

		category, elapsed := e.attempt(ctx, job, p.AttemptTimeout)
		e.metrics.RecordAttempt(ctx, job.Name, attempt, category, elapsed)

		if category == "" {
			logger.Info("attempt passed", "attempt", attempt, "duration", elapsed)
			span.SetAttributes(attribute.Int("attempts", attempt))
			return types.OutcomeSucceeded
		}
		logger.Warn("attempt failed",
			"attempt", attempt,
			"maxAttempts", p.MaxAttempts,
			"category", category,
			"duration", elapsed,
		)

		if attempt == p.MaxAttempts {
			break
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		if wait > 0 {
			logger.Debug("backing off", "delay", wait)
		}
		if err := e.sleep(ctx, wait); err != nil {
			logger.Warn("run ended during backoff", "error", context.Cause(ctx))
			break
		}
	}

	span.SetStatus(codes.Error, "job failed")
	return types.OutcomeFailed
}

func (e *Executor) attempt(ctx context.Context, job types.Job, timeout time.Duration) (types.FailureCategory, time.Duration) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := e.runner.Run(attemptCtx, job)
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Debug("attempt error", "job", job.Name, "error", err)
	}
	return command.ClassifyFailure(attemptCtx, err), elapsed
}
