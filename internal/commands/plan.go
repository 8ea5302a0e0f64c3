package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/testgate/internal/config"
	"github.com/dwsmith1983/testgate/internal/selection"
	"github.com/dwsmith1983/testgate/internal/signal"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// NewPlanCmd creates the plan command.
func NewPlanCmd() *cobra.Command {
	var (
		f       commonFlags
		trigger string
		sigPath string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which jobs would run for a trigger, without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.setup()
			if err != nil {
				return err
			}
			t, err := types.ParseTriggerEvent(trigger)
			if err != nil {
				return err
			}
			dec := signal.NewDecoder(signal.WithDependenciesKey(dependenciesKey(cfg)), signal.WithLogger(logger))
			jobs, _ := config.Resolve(cfg)
			decisions := selection.Plan(t, jobs, dec.LoadFile(signalPath(sigPath, cfg)))

			if asJSON {
				return writePlanJSON(cmd.OutOrStdout(), decisions)
			}
			printPlan(cmd.OutOrStdout(), t, decisions)
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&trigger, "trigger", "", "Trigger event (manual|pull_request|merge_queue)")
	cmd.Flags().StringVar(&sigPath, "signal", "", "Change signal artifact path, - for stdin (overrides signal.path)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print decisions as JSON")
	_ = cmd.MarkFlagRequired("trigger")
	return cmd
}

func writePlanJSON(w io.Writer, decisions []selection.Decision) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(decisions)
}

func printPlan(w io.Writer, trigger types.TriggerEvent, decisions []selection.Decision) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Plan for %s:\n", trigger)

	if len(decisions) == 0 {
		_, _ = fmt.Fprintln(w, "  No jobs configured.")
		return
	}
	for _, d := range decisions {
		if d.Run {
			_, _ = fmt.Fprintf(w, "  %s %-30s %s\n", color.GreenString("run "), d.Job, d.Reason)
		} else {
			_, _ = fmt.Fprintf(w, "  %s %-30s %s\n", color.YellowString("skip"), d.Job, d.Reason)
		}
	}
	_, _ = fmt.Fprintf(w, "\n%d of %d job(s) selected\n", len(selection.Selected(decisions)), len(decisions))
}
