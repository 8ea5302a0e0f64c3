package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/testgate/internal/alert"
	"github.com/dwsmith1983/testgate/internal/command"
	"github.com/dwsmith1983/testgate/internal/config"
	"github.com/dwsmith1983/testgate/internal/gate"
	"github.com/dwsmith1983/testgate/internal/secrets"
	"github.com/dwsmith1983/testgate/internal/signal"
	"github.com/dwsmith1983/testgate/internal/telemetry"
	"github.com/dwsmith1983/testgate/pkg/types"
)

const shutdownTimeout = 10 * time.Second

type runFlags struct {
	commonFlags
	trigger          string
	signal           string
	secretsAvailable bool
	headRepo         string
	baseRepo         string
	workflow         string
	subject          string
	runID            string
	maxParallel      int
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the integration gate and exit with its verdict",
		Long: `Selects the jobs that must run for the trigger, runs them with retries,
and exits 0 when the suite succeeded, 1 when it failed, 3 when the run was
cancelled and 2 on configuration errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGate(cmd.Context(), f)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&f.trigger, "trigger", "", "Trigger event (manual|pull_request|merge_queue)")
	cmd.Flags().StringVar(&f.signal, "signal", "", "Change signal artifact path, - for stdin (overrides signal.path)")
	cmd.Flags().BoolVar(&f.secretsAvailable, "secrets-available", false, "Secrets are exposed to this run (static provider)")
	cmd.Flags().StringVar(&f.headRepo, "head-repo", "", "Head repository of the change (same-repo provider)")
	cmd.Flags().StringVar(&f.baseRepo, "base-repo", "", "Base repository of the change (same-repo provider)")
	cmd.Flags().StringVar(&f.workflow, "workflow", "", "Workflow name (overrides config)")
	cmd.Flags().StringVar(&f.subject, "subject", "local", "Pull request or commit under test")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "Run id (generated when empty)")
	cmd.Flags().IntVar(&f.maxParallel, "max-parallel", 0, "Maximum concurrently running jobs (overrides config)")
	_ = cmd.MarkFlagRequired("trigger")
	return cmd
}

func runGate(ctx context.Context, f runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := f.setup()
	if err != nil {
		return err
	}
	trigger, err := types.ParseTriggerEvent(f.trigger)
	if err != nil {
		return err
	}

	jobs, opts := config.Resolve(cfg)
	if f.maxParallel > 0 {
		opts.MaxParallel = f.maxParallel
	}
	workflow := cfg.Workflow
	if f.workflow != "" {
		workflow = f.workflow
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	dec := signal.NewDecoder(signal.WithDependenciesKey(dependenciesKey(cfg)), signal.WithLogger(logger))
	sig := dec.LoadFile(signalPath(f.signal, cfg))

	checker, err := secrets.New(ctx, cfg.Secrets, secrets.Options{
		Available: f.secretsAvailable,
		HeadRepo:  f.headRepo,
		BaseRepo:  f.baseRepo,
	})
	if err != nil {
		return fmt.Errorf("creating secrets checker: %w", err)
	}
	available := secrets.Resolve(ctx, checker, logger)

	st, err := newStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}
	defer func() { _ = st.Stop(context.Background()) }()

	dispatcher, err := alert.NewDispatcher(ctx, cfg.Alerts, alert.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating alert dispatcher: %w", err)
	}

	runner := command.NewShellRunner(command.WithEnv("TESTGATE_TRIGGER=" + string(trigger)))
	g, err := newGate(opts, runner, st, dispatcher, logger)
	if err != nil {
		return err
	}

	ctx, stop := ossignal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := g.Run(ctx, gate.Request{
		RunID:            f.runID,
		Key:              types.RunKey{Workflow: workflow, Subject: f.subject},
		Trigger:          trigger,
		Jobs:             jobs,
		Signal:           sig,
		SecretsAvailable: available,
	})
	if rec != nil {
		printRecord(rec)
	}
	switch {
	case errors.Is(err, gate.ErrCancelled):
		return &ExitError{Code: ExitCancelled, Err: err}
	case err != nil:
		return err
	case rec.Verdict == types.VerdictFailed:
		return &ExitError{Code: ExitFailed, Err: fmt.Errorf("gate %s failed: %s", rec.RunID, rec.Message)}
	}
	return nil
}

func printRecord(rec *types.RunRecord) {
	bold := color.New(color.Bold)
	fmt.Println()
	_, _ = bold.Printf("Run %s (%s, %s)\n", rec.RunID, rec.Key, rec.Trigger)

	for _, name := range sortedJobs(rec.Outcomes) {
		switch rec.Outcomes[name] {
		case types.OutcomeSucceeded:
			color.Green("  ✓ %s", name)
		case types.OutcomeSkipped:
			color.Yellow("  ○ %s: skipped", name)
		default:
			color.Red("  ✗ %s: failed", name)
		}
	}

	fmt.Println()
	switch {
	case rec.Status == types.RunCancelled:
		color.Yellow("CANCELLED: %s", rec.Message)
	case rec.Verdict == types.VerdictSucceeded:
		color.Green("SUCCEEDED: %s", rec.Message)
	default:
		color.Red("FAILED: %s", rec.Message)
	}
}
