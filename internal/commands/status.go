package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var (
		f        commonFlags
		workflow string
		limit    int
		events   bool
	)

	cmd := &cobra.Command{
		Use:   "status <subject | run-id>",
		Short: "Show recent runs for a subject, or one run by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.setup()
			if err != nil {
				return err
			}
			if workflow == "" {
				workflow = cfg.Workflow
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			st, err := newStore(ctx, cfg.Store, logger)
			if err != nil {
				return fmt.Errorf("creating store: %w", err)
			}
			if err := st.Start(ctx); err != nil {
				return fmt.Errorf("connecting to store: %w", err)
			}
			defer func() { _ = st.Stop(ctx) }()

			if rec, err := st.GetRun(ctx, args[0]); err == nil {
				return showRun(ctx, st, rec, events)
			}
			return showRuns(ctx, st, types.RunKey{Workflow: workflow, Subject: args[0]}, limit)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&workflow, "workflow", "", "Workflow name (defaults to config)")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultRunLimit, "Number of runs to show")
	cmd.Flags().BoolVar(&events, "events", false, "Include the run's event log")
	return cmd
}

func showRuns(ctx context.Context, st store.Store, key types.RunKey, limit int) error {
	runs, err := st.ListRuns(ctx, key, limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Printf("No runs recorded for %s.\n", key)
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Recent runs for %s:\n", key)
	fmt.Println()
	for _, r := range runs {
		fmt.Printf("  %-28s %-12s %-22s %-14s %s\n",
			r.RunID, r.Trigger, statusString(r), r.StartedAt.Format(time.RFC3339), r.Message)
	}
	fmt.Println()
	return nil
}

func showRun(ctx context.Context, st store.Store, r *types.RunRecord, withEvents bool) error {
	printRecord(r)
	fmt.Printf("  Status:    %s\n", statusString(*r))
	fmt.Printf("  Started:   %s\n", r.StartedAt.Format(time.RFC3339))
	if r.CompletedAt != nil {
		fmt.Printf("  Completed: %s (%s)\n", r.CompletedAt.Format(time.RFC3339), r.CompletedAt.Sub(r.StartedAt).Round(time.Second))
	}
	if !withEvents {
		return nil
	}

	evs, err := st.ListEvents(ctx, r.RunID, store.DefaultEventLimit)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}
	fmt.Println()
	_, _ = color.New(color.Bold).Println("  Events:")
	for _, e := range evs {
		fmt.Printf("    %s %-20s %-10s %-10s %s\n", e.Timestamp.Format(time.RFC3339), e.Kind, e.Job, e.Status, e.Message)
	}
	return nil
}

func statusString(r types.RunRecord) string {
	s := string(r.Status)
	if r.Verdict != "" {
		s += "/" + string(r.Verdict)
	}
	switch {
	case r.Status == types.RunCancelled:
		return color.YellowString(s)
	case r.Verdict == types.VerdictSucceeded:
		return color.GreenString(s)
	case r.Verdict == types.VerdictFailed:
		return color.RedString(s)
	default:
		return color.CyanString(s)
	}
}
