// Package commands implements the CLI subcommands for the testgate binary.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/testgate/internal/alert"
	"github.com/dwsmith1983/testgate/internal/command"
	"github.com/dwsmith1983/testgate/internal/config"
	"github.com/dwsmith1983/testgate/internal/executor"
	"github.com/dwsmith1983/testgate/internal/gate"
	"github.com/dwsmith1983/testgate/internal/metrics"
	"github.com/dwsmith1983/testgate/internal/store"
	ddbstore "github.com/dwsmith1983/testgate/internal/store/dynamodb"
	"github.com/dwsmith1983/testgate/internal/store/memory"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// Process exit codes.
const (
	ExitSucceeded = 0
	ExitFailed    = 1
	ExitUsage     = 2
	ExitCancelled = 3
)

// ExitError carries the process exit code for an error returned by a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps a command error to a process exit code. Errors without an
// explicit code are usage or configuration errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitSucceeded
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitUsage
}

// commonFlags are shared by every command that reads testgate.yaml.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", ".", "Path to testgate.yaml or its directory")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
}

// setup installs the JSON logger and loads the config.
func (f *commonFlags) setup() (*types.ProjectConfig, *slog.Logger, error) {
	logger, err := newLogger(f.logLevel)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newLogger builds a JSON logger on stderr and makes it the default.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger, nil
}

// newStore creates the configured run store. No store config means an
// in-process memory store.
func newStore(ctx context.Context, cfg *types.StoreConfig, logger *slog.Logger) (store.Store, error) {
	if cfg == nil {
		return memory.New(), nil
	}
	switch cfg.Provider {
	case "", config.StoreMemory:
		return memory.New(), nil
	case config.StoreDynamoDB:
		return ddbstore.New(ctx, cfg.DynamoDB, ddbstore.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unsupported store provider: %s", cfg.Provider)
	}
}

// newGate wires the executor and gate over a shell runner.
func newGate(opts gate.Options, runner command.Runner, st store.Store, dispatcher *alert.Dispatcher, logger *slog.Logger) (*gate.Gate, error) {
	rec := metrics.Default()
	exec := executor.New(runner,
		executor.WithPolicy(opts.Policy),
		executor.WithLogger(logger),
		executor.WithMetrics(rec),
	)
	return gate.New(exec, opts,
		gate.WithStore(st),
		gate.WithAlertFunc(dispatcher.Dispatch),
		gate.WithLogger(logger),
		gate.WithMetrics(rec),
	)
}

// signalPath returns the flag value if set, else the configured artifact path.
func signalPath(flag string, cfg *types.ProjectConfig) string {
	if flag != "" {
		return flag
	}
	if cfg.Signal != nil {
		return cfg.Signal.Path
	}
	return ""
}

func dependenciesKey(cfg *types.ProjectConfig) string {
	if cfg.Signal != nil {
		return cfg.Signal.DependenciesKey
	}
	return ""
}

func sortedJobs(outcomes map[string]types.JobOutcome) []string {
	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
