// Package metrics records gate activity as OpenTelemetry instruments.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// ScopeName is the instrumentation scope for meters and tracers.
const ScopeName = "github.com/dwsmith1983/testgate"

// Instrument names.
const (
	AttemptsTotal   = "testgate.attempts"
	JobOutcomes     = "testgate.job.outcomes"
	RunsTotal       = "testgate.runs"
	AttemptDuration = "testgate.attempt.duration"
)

// Recorder holds the gate's instruments. A nil *Recorder records nothing.
type Recorder struct {
	attempts metric.Int64Counter
	outcomes metric.Int64Counter
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates the instruments on mp.
func New(mp metric.MeterProvider) (*Recorder, error) {
	meter := mp.Meter(ScopeName)

	attempts, err := meter.Int64Counter(AttemptsTotal,
		metric.WithDescription("Job attempts by result category."))
	if err != nil {
		return nil, err
	}
	outcomes, err := meter.Int64Counter(JobOutcomes,
		metric.WithDescription("Final job outcomes."))
	if err != nil {
		return nil, err
	}
	runs, err := meter.Int64Counter(RunsTotal,
		metric.WithDescription("Gate runs by status and verdict."))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(AttemptDuration,
		metric.WithDescription("Wall time of a single job attempt."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Recorder{attempts: attempts, outcomes: outcomes, runs: runs, duration: duration}, nil
}

// Default returns a Recorder bound to the global MeterProvider, falling back
// to a no-op provider if instrument creation fails.
func Default() *Recorder {
	r, err := New(otel.GetMeterProvider())
	if err != nil {
		r, _ = New(noop.NewMeterProvider())
	}
	return r
}

// Tracer returns the gate's tracer from the global TracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}

// RecordAttempt counts one attempt. An empty category means it passed.
func (r *Recorder) RecordAttempt(ctx context.Context, job string, attempt int, category types.FailureCategory, elapsed time.Duration) {
	if r == nil {
		return
	}
	result := string(category)
	if result == "" {
		result = "PASSED"
	}
	attrs := metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("result", result),
		attribute.Int("attempt", attempt),
	)
	r.attempts.Add(ctx, 1, attrs)
	r.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("result", result),
	))
}

// RecordOutcome counts a job's final outcome.
func (r *Recorder) RecordOutcome(ctx context.Context, job string, outcome types.JobOutcome) {
	if r == nil {
		return
	}
	r.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("outcome", string(outcome)),
	))
}

// RecordRun counts a finished run.
func (r *Recorder) RecordRun(ctx context.Context, rec *types.RunRecord) {
	if r == nil || rec == nil {
		return
	}
	r.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", rec.Key.Workflow),
		attribute.String("status", string(rec.Status)),
		attribute.String("verdict", string(rec.Verdict)),
		attribute.Bool("short_circuited", rec.ShortCircuited),
	))
}
