// Package gate runs one trigger through the secret gate, the fleet and the
// verdict fold, and records the run.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/testgate/internal/fleet"
	"github.com/dwsmith1983/testgate/internal/lifecycle"
	"github.com/dwsmith1983/testgate/internal/metrics"
	"github.com/dwsmith1983/testgate/internal/selection"
	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/internal/verdict"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// ErrCancelled is returned when a run ends without a verdict because its
// context was cancelled (superseded or interrupted).
var ErrCancelled = errors.New("gate run cancelled")

// Options is the resolved execution policy of a gate.
type Options struct {
	Policy             types.RetryPolicy
	RunCeiling         time.Duration
	KillGrace          time.Duration
	MaxParallel        int
	SecretShortCircuit types.ShortCircuitPolicy
}

// Request describes one run.
type Request struct {
	RunID            string // optional; generated when empty
	Key              types.RunKey
	Trigger          types.TriggerEvent
	Jobs             []types.Job
	Signal           types.ChangeSignal
	SecretsAvailable bool
}

// Gate orchestrates runs. It is safe for concurrent use.
type Gate struct {
	exec    fleet.JobExecutor
	opts    Options
	store   store.Store
	alertFn func(context.Context, types.Alert)
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	newID   func() string
}

// Option configures a Gate.
type Option func(*Gate)

// WithStore records runs and events in s.
func WithStore(s store.Store) Option {
	return func(g *Gate) { g.store = s }
}

// WithAlertFunc sets the alert callback.
func WithAlertFunc(fn func(context.Context, types.Alert)) Option {
	return func(g *Gate) { g.alertFn = fn }
}

// WithLogger sets the gate logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewRunID returns a new lexically sortable run id.
func NewRunID() string {
	return ulid.Make().String()
}

// New creates a Gate. The secret short-circuit policy has no default and
// must be set.
func New(exec fleet.JobExecutor, opts Options, options ...Option) (*Gate, error) {
	if _, err := verdict.ShortCircuit(opts.SecretShortCircuit); err != nil {
		return nil, err
	}
	g := &Gate{
		exec:   exec,
		opts:   opts,
		logger: slog.Default(),
		now:    time.Now,
		newID:  NewRunID,
	}
	for _, o := range options {
		o(g)
	}
	return g, nil
}

// Run executes req to completion and returns the final record. A cancelled
// run returns its record together with an error wrapping ErrCancelled.
func (g *Gate) Run(ctx context.Context, req Request) (*types.RunRecord, error) {
	if err := fleet.Validate(req.Jobs); err != nil {
		return nil, err
	}

	rec := &types.RunRecord{
		RunID:     req.RunID,
		Key:       req.Key,
		Trigger:   req.Trigger,
		Status:    types.RunPending,
		StartedAt: g.now(),
	}
	if rec.RunID == "" {
		rec.RunID = g.newID()
	}
	logger := g.logger.With("runId", rec.RunID, "key", req.Key.String(), "trigger", req.Trigger)

	ctx, span := metrics.Tracer().Start(ctx, "gate.run", trace.WithAttributes(
		attribute.String("run_id", rec.RunID),
		attribute.String("workflow", req.Key.Workflow),
		attribute.String("trigger", string(req.Trigger)),
	))
	defer span.End()

	g.save(ctx, logger, rec)
	g.event(ctx, logger, types.Event{Kind: types.EventRunStarted, RunID: rec.RunID, Status: string(rec.Status), Details: map[string]interface{}{
		"trigger":          string(req.Trigger),
		"jobs":             len(req.Jobs),
		"secretsAvailable": req.SecretsAvailable,
	}})
	logger.Info("run started", "jobs", len(req.Jobs), "secretsAvailable", req.SecretsAvailable)

	if !req.SecretsAvailable && req.Trigger != types.TriggerMergeQueue {
		return g.shortCircuit(ctx, logger, rec)
	}

	if err := g.transition(rec, types.RunRunning); err != nil {
		return nil, err
	}
	g.save(ctx, logger, rec)

	fl := fleet.New(g.exec,
		fleet.WithMaxParallel(g.opts.MaxParallel),
		fleet.WithRunCeiling(orDefault(g.opts.RunCeiling, fleet.DefaultRunCeiling)),
		fleet.WithKillGrace(orDefault(g.opts.KillGrace, fleet.DefaultKillGrace)),
		fleet.WithLogger(logger),
		fleet.WithMetrics(g.metrics),
		fleet.WithOnDecision(func(d selection.Decision) {
			kind := types.EventJobSkipped
			if d.Run {
				kind = types.EventJobSelected
			}
			g.event(ctx, logger, types.Event{Kind: kind, RunID: rec.RunID, Job: d.Job, Message: string(d.Reason)})
		}),
		fleet.WithOnFinished(func(job string, outcome types.JobOutcome) {
			g.event(ctx, logger, types.Event{Kind: types.EventJobFinished, RunID: rec.RunID, Job: job, Status: string(outcome)})
		}),
	)

	outcomes, err := fl.Run(ctx, req.Trigger, req.Jobs, req.Signal)
	if errors.Is(err, fleet.ErrCancelled) {
		return g.cancelled(ctx, logger, rec, err)
	}
	if err != nil {
		return nil, err
	}
	if err := verdict.Complete(req.Jobs, outcomes); err != nil {
		return nil, fmt.Errorf("run %s: %w", rec.RunID, err)
	}

	v := verdict.Aggregate(outcomes)
	failed := verdict.Failed(outcomes)
	if err := g.transition(rec, types.RunCompleted); err != nil {
		return nil, err
	}
	rec.Outcomes = outcomes
	rec.Verdict = v
	rec.Message = completionMessage(v, failed)
	g.finish(ctx, logger, rec)

	g.event(ctx, logger, types.Event{Kind: types.EventRunCompleted, RunID: rec.RunID, Status: string(v), Message: rec.Message,
		Details: map[string]interface{}{"failed": failed}})
	logger.Info("run completed", "verdict", v, "failed", failed)

	if v == types.VerdictFailed {
		g.alert(ctx, types.Alert{Level: types.AlertLevelError, RunID: rec.RunID, Key: rec.Key, Verdict: v, Message: rec.Message, Failed: failed})
	}
	return rec, nil
}

func (g *Gate) shortCircuit(ctx context.Context, logger *slog.Logger, rec *types.RunRecord) (*types.RunRecord, error) {
	v, err := verdict.ShortCircuit(g.opts.SecretShortCircuit)
	if err != nil {
		return nil, err
	}
	if err := g.transition(rec, types.RunCompleted); err != nil {
		return nil, err
	}
	rec.Verdict = v
	rec.ShortCircuited = true
	rec.Message = fmt.Sprintf("secrets unavailable, jobs not run; verdict %s by policy", v)
	g.finish(ctx, logger, rec)

	g.event(ctx, logger, types.Event{Kind: types.EventRunShortCircuited, RunID: rec.RunID, Status: string(v), Message: rec.Message,
		Details: map[string]interface{}{"policy": string(g.opts.SecretShortCircuit)}})
	g.event(ctx, logger, types.Event{Kind: types.EventRunCompleted, RunID: rec.RunID, Status: string(v), Message: rec.Message})
	logger.Warn("run short-circuited", "verdict", v, "policy", g.opts.SecretShortCircuit)

	g.alert(ctx, types.Alert{Level: types.AlertLevelWarning, RunID: rec.RunID, Key: rec.Key, Verdict: v, Message: rec.Message})
	return rec, nil
}

func (g *Gate) cancelled(ctx context.Context, logger *slog.Logger, rec *types.RunRecord, cause error) (*types.RunRecord, error) {
	// The run context is done; record the outcome on a detached context.
	ctx = context.WithoutCancel(ctx)

	if err := g.transition(rec, types.RunCancelled); err != nil {
		return nil, err
	}
	rec.Message = fmt.Sprintf("cancelled: %v", cause)
	g.finish(ctx, logger, rec)

	g.event(ctx, logger, types.Event{Kind: types.EventRunCancelled, RunID: rec.RunID, Status: string(rec.Status), Message: rec.Message})
	logger.Warn("run cancelled", "cause", cause)

	g.alert(ctx, types.Alert{Level: types.AlertLevelInfo, RunID: rec.RunID, Key: rec.Key, Message: rec.Message})
	return rec, fmt.Errorf("%w: %w", ErrCancelled, cause)
}

func (g *Gate) transition(rec *types.RunRecord, to types.RunStatus) error {
	if err := lifecycle.Transition(rec.Status, to); err != nil {
		return fmt.Errorf("run %s: %w", rec.RunID, err)
	}
	rec.Status = to
	return nil
}

func (g *Gate) finish(ctx context.Context, logger *slog.Logger, rec *types.RunRecord) {
	now := g.now()
	rec.CompletedAt = &now
	g.save(ctx, logger, rec)
	g.metrics.RecordRun(ctx, rec)
}

func (g *Gate) save(ctx context.Context, logger *slog.Logger, rec *types.RunRecord) {
	if g.store == nil {
		return
	}
	if err := g.store.PutRun(ctx, *rec); err != nil {
		logger.Error("failed to persist run", "status", rec.Status, "error", err)
	}
}

func (g *Gate) event(ctx context.Context, logger *slog.Logger, ev types.Event) {
	if g.store == nil {
		return
	}
	ev.Timestamp = g.now()
	if err := g.store.AppendEvent(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn("failed to append event", "kind", ev.Kind, "error", err)
	}
}

func (g *Gate) alert(ctx context.Context, a types.Alert) {
	if g.alertFn == nil {
		return
	}
	a.Timestamp = g.now()
	g.alertFn(ctx, a)
}

func completionMessage(v types.Verdict, failed []string) string {
	if v == types.VerdictFailed {
		return fmt.Sprintf("%d job(s) failed: %v", len(failed), failed)
	}
	return "all selected jobs passed"
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
