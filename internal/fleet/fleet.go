// Package fleet fans the selected jobs of a run out concurrently and joins
// their outcomes.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/testgate/internal/metrics"
	"github.com/dwsmith1983/testgate/internal/selection"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// Run defaults.
const (
	DefaultRunCeiling = 90 * time.Minute
	DefaultKillGrace  = 30 * time.Second
)

var (
	// ErrCancelled is returned when the caller's context ends before every
	// job reports. No outcomes are returned in that case.
	ErrCancelled = errors.New("fleet run cancelled")

	// ErrDuplicateJob is returned when two jobs share a name.
	ErrDuplicateJob = errors.New("duplicate job name")

	// ErrRunCeiling is the cancellation cause when the total run ceiling expires.
	ErrRunCeiling = errors.New("run ceiling exceeded")
)

// JobExecutor drives one job to a final outcome.
type JobExecutor interface {
	Execute(ctx context.Context, job types.Job) types.JobOutcome
}

// ExecutorFunc adapts a function to JobExecutor.
type ExecutorFunc func(ctx context.Context, job types.Job) types.JobOutcome

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, job types.Job) types.JobOutcome {
	return f(ctx, job)
}

// Runner runs a fleet of jobs for one trigger.
type Runner struct {
	exec        JobExecutor
	maxParallel int
	ceiling     time.Duration
	killGrace   time.Duration
	logger      *slog.Logger
	metrics     *metrics.Recorder
	onDecision  func(selection.Decision)
	onFinished  func(job string, outcome types.JobOutcome)
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxParallel caps concurrently running jobs. Zero means unlimited.
func WithMaxParallel(n int) Option {
	return func(r *Runner) { r.maxParallel = n }
}

// WithRunCeiling sets the total wall-clock limit for one run.
func WithRunCeiling(d time.Duration) Option {
	return func(r *Runner) { r.ceiling = d }
}

// WithKillGrace sets how long to wait for killed jobs to report after the
// run ceiling expires before forcing them to failed.
func WithKillGrace(d time.Duration) Option {
	return func(r *Runner) { r.killGrace = d }
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithOnDecision registers a callback for every selection decision.
func WithOnDecision(fn func(selection.Decision)) Option {
	return func(r *Runner) { r.onDecision = fn }
}

// WithOnFinished registers a callback for every executed job's outcome. It
// is called from job goroutines and must be safe for concurrent use.
func WithOnFinished(fn func(job string, outcome types.JobOutcome)) Option {
	return func(r *Runner) { r.onFinished = fn }
}

// New creates a Runner that executes selected jobs with exec.
func New(exec JobExecutor, opts ...Option) *Runner {
	r := &Runner{
		exec:      exec,
		ceiling:   DefaultRunCeiling,
		killGrace: DefaultKillGrace,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run selects and executes jobs, returning exactly one outcome per job.
// Jobs not selected are recorded skipped. Selected jobs run concurrently and
// never observe one another. When the run ceiling expires, in-flight jobs are
// killed and any job still silent after the kill grace is recorded failed.
// If ctx ends first, Run returns ErrCancelled and no outcomes.
func (r *Runner) Run(ctx context.Context, trigger types.TriggerEvent, jobs []types.Job, signal types.ChangeSignal) (map[string]types.JobOutcome, error) {
	if err := Validate(jobs); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}

	ctx, span := metrics.Tracer().Start(ctx, "fleet.run", trace.WithAttributes(
		attribute.String("trigger", string(trigger)),
		attribute.Int("jobs", len(jobs)),
	))
	defer span.End()

	res := newResults(len(jobs))
	var selected []types.Job
	for i, d := range selection.Plan(trigger, jobs, signal) {
		if r.onDecision != nil {
			r.onDecision(d)
		}
		if !d.Run {
			res.set(d.Job, types.OutcomeSkipped)
			r.logger.Info("job skipped", "job", d.Job, "reason", d.Reason)
			continue
		}
		r.logger.Info("job selected", "job", d.Job, "reason", d.Reason)
		selected = append(selected, jobs[i])
	}
	span.SetAttributes(attribute.Int("selected", len(selected)))

	if len(selected) > 0 {
		r.execute(ctx, selected, res)
	}

	if ctx.Err() != nil {
		r.logger.Warn("fleet run cancelled", "error", context.Cause(ctx))
		return nil, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
	}

	for _, name := range res.seal(selected) {
		r.logger.Error("job did not report within kill grace, marking failed", "job", name, "killGrace", r.killGrace)
	}

	outcomes := res.snapshot()
	for name, o := range outcomes {
		r.metrics.RecordOutcome(ctx, name, o)
	}
	return outcomes, nil
}

func (r *Runner) execute(ctx context.Context, selected []types.Job, res *results) {
	runCtx, cancel := context.WithTimeoutCause(ctx, r.ceiling, ErrRunCeiling)
	defer cancel()

	var g errgroup.Group
	if r.maxParallel > 0 {
		g.SetLimit(r.maxParallel)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, job := range selected {
			g.Go(func() error {
				outcome := r.exec.Execute(runCtx, job)
				if res.set(job.Name, outcome) {
					r.logger.Info("job finished", "job", job.Name, "outcome", outcome)
					if r.onFinished != nil {
						r.onFinished(job.Name, outcome)
					}
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
		return
	case <-runCtx.Done():
	}

	r.logger.Warn("stopping in-flight jobs", "cause", context.Cause(runCtx), "killGrace", r.killGrace)
	grace := time.NewTimer(r.killGrace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
	}
}

// Validate rejects empty or duplicate job names.
func Validate(jobs []types.Job) error {
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		if j.Name == "" {
			return fmt.Errorf("job name is empty")
		}
		if _, dup := seen[j.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, j.Name)
		}
		seen[j.Name] = struct{}{}
	}
	return nil
}
