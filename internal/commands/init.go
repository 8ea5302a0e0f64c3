package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/testgate/internal/config"
)

const starterConfig = `workflow: integration

defaults:
  # Run by every job without its own command. The job name is passed as $1
  # and in TESTGATE_JOB.
  command: ./scripts/integration-test.sh
  attemptTimeout: 30m
  maxAttempts: 3
  runCeiling: 90m
  killGrace: 30s
  backoff:
    strategy: none
  # Verdict when secrets are unavailable and the trigger is not merge_queue.
  secretShortCircuit: fail

signal:
  path: changes.json
  dependenciesKey: dependencies

secrets:
  provider: same-repo

store:
  provider: memory

alerts:
  - type: console

server:
  addr: ":8080"

jobs:
  - name: example
`

const starterScript = `#!/bin/sh
# Runs the integration tests for one job. Exit non-zero on failure.
set -eu
echo "running integration tests for $1"
`

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Scaffold a testgate.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing testgate.yaml")
	return cmd
}

func runInit(dir string, force bool) error {
	bold := color.New(color.Bold)

	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", configPath, err)
	}

	scriptDir := filepath.Join(dir, "scripts")
	if err := os.MkdirAll(scriptDir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", scriptDir, err)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	scriptPath := filepath.Join(scriptDir, "integration-test.sh")
	if _, err := os.Stat(scriptPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(scriptPath, []byte(starterScript), 0o755); err != nil {
			return fmt.Errorf("writing example script: %w", err)
		}
	}

	color.Green("  ✓ Wrote %s", configPath)
	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Println("  testgate plan --trigger pull_request")
	fmt.Println("  testgate run --trigger manual --secrets-available")
	return nil
}
