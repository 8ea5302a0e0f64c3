// Package alert implements verdict notifications to multiple sinks.
package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.Alert) error
	Name() string
}

// Dispatcher routes alerts to configured sinks.
type Dispatcher struct {
	sinks    []Sink
	logger   *slog.Logger
	console  io.Writer
	ebClient EventBridgeAPI
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithConsoleOutput redirects the console sink.
func WithConsoleOutput(w io.Writer) Option {
	return func(d *Dispatcher) { d.console = w }
}

// WithEventBridgeClient injects the client used by eventbridge sinks.
func WithEventBridgeClient(c EventBridgeAPI) Option {
	return func(d *Dispatcher) { d.ebClient = c }
}

// WithSinks appends already-built sinks.
func WithSinks(sinks ...Sink) Option {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, sinks...) }
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(ctx context.Context, configs []types.AlertConfig, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{logger: slog.Default(), console: os.Stdout}
	for _, o := range opts {
		o(d)
	}
	for _, cfg := range configs {
		sink, err := d.newSink(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// Dispatch sends an alert to all configured sinks. Delivery failures are
// logged and never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, alert types.Alert) {
	if d == nil {
		return
	}
	for _, sink := range d.sinks {
		if err := sink.Send(ctx, alert); err != nil {
			d.logger.Warn("alert delivery failed", "sink", sink.Name(), "runId", alert.RunID, "error", err)
		}
	}
}

// Len returns the number of configured sinks.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.sinks)
}

func (d *Dispatcher) newSink(ctx context.Context, cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(d.console), nil
	case types.AlertWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL, WithWebhookLogger(d.logger)), nil
	case types.AlertFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.AlertEventBridge:
		opts := []EventBridgeSinkOption{WithEventBridgeRegion(cfg.Region), WithEventSource(cfg.Source)}
		if d.ebClient != nil {
			opts = append(opts, WithEventBridgeSinkClient(d.ebClient))
		}
		return NewEventBridgeSink(ctx, cfg.EventBusName, opts...)
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}
