package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/testgate/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "testgate",
		Short: "Selective integration-test gate for CI",
		Long: `Testgate decides which integration-test jobs a CI event must run, runs
them with bounded retries and reduces their outcomes to one verdict.
Pull requests run only the jobs whose files changed; merge-queue and manual
runs execute the whole fleet.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewPlanCmd(),
		commands.NewRunCmd(),
		commands.NewStatusCmd(),
		commands.NewServeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(commands.ExitCode(err))
	}
}
