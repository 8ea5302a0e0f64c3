package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/testgate/pkg/types"
)

const validConfig = `workflow: integration
defaults:
  command: ./scripts/integration-test.sh
  attemptTimeout: 20m
  maxAttempts: 2
  runCeiling: 1h
  killGrace: 10s
  maxParallel: 2
  secretShortCircuit: fail
  backoff:
    strategy: exponential
    delay: 15s
    multiplier: 2
    maxDelay: 2m
signal:
  path: changes.json
  dependenciesKey: source
secrets:
  provider: same-repo
store:
  provider: dynamodb
  dynamodb:
    tableName: testgate-runs
    region: us-east-1
alerts:
  - type: console
  - type: eventbridge
    eventBusName: ci
server:
  addr: ":8080"
jobs:
  - name: aws
    maxAttempts: 4
  - name: gcp
    command: make test-gcp
    attemptTimeout: 45m
  - name: azure
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, validConfig)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "integration", cfg.Workflow)
	assert.Equal(t, types.ShortCircuitFail, cfg.Defaults.SecretShortCircuit)
	assert.Equal(t, "source", cfg.Signal.DependenciesKey)
	assert.Equal(t, "testgate-runs", cfg.Store.DynamoDB.TableName)
	assert.Len(t, cfg.Alerts, 2)
	assert.Len(t, cfg.Jobs, 3)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	byFile, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, cfg, byFile)
}

func TestResolve(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	jobs, opts := Resolve(cfg)
	require.Len(t, jobs, 3)
	assert.Equal(t, types.Job{Name: "aws", Command: "./scripts/integration-test.sh", MaxAttempts: 4}, jobs[0])
	assert.Equal(t, types.Job{Name: "gcp", Command: "make test-gcp", AttemptTimeout: 45 * time.Minute}, jobs[1])
	assert.Equal(t, "./scripts/integration-test.sh", jobs[2].Command)

	assert.Equal(t, 2, opts.Policy.MaxAttempts)
	assert.Equal(t, 20*time.Minute, opts.Policy.AttemptTimeout)
	assert.Equal(t, types.BackoffExponential, opts.Policy.Backoff)
	assert.Equal(t, 15*time.Second, opts.Policy.BackoffDelay)
	assert.Equal(t, 2*time.Minute, opts.Policy.MaxBackoff)
	assert.Equal(t, time.Hour, opts.RunCeiling)
	assert.Equal(t, 10*time.Second, opts.KillGrace)
	assert.Equal(t, 2, opts.MaxParallel)
	assert.Equal(t, types.ShortCircuitFail, opts.SecretShortCircuit)
}

func TestResolve_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "workflow: w\ndefaults:\n  secretShortCircuit: succeed\njobs:\n  - name: a\n    command: 'true'\n"))
	require.NoError(t, err)

	_, opts := Resolve(cfg)
	assert.Equal(t, 3, opts.Policy.MaxAttempts)
	assert.Equal(t, 30*time.Minute, opts.Policy.AttemptTimeout)
	assert.Equal(t, types.BackoffNone, opts.Policy.Backoff)
	assert.Zero(t, opts.RunCeiling, "zero defers to the fleet default")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/testgate.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "workflow: [yaml"))
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing workflow",
			content: "defaults:\n  secretShortCircuit: fail\n",
			wantErr: "workflow is required",
		},
		{
			name:    "short-circuit policy has no default",
			content: "workflow: w\njobs:\n  - name: a\n    command: 'true'\n",
			wantErr: "secretShortCircuit",
		},
		{
			name:    "unknown short-circuit policy",
			content: "workflow: w\ndefaults:\n  secretShortCircuit: maybe\n",
			wantErr: "secretShortCircuit",
		},
		{
			name:    "duplicate job",
			content: "workflow: w\ndefaults:\n  secretShortCircuit: fail\n  command: x\njobs:\n  - name: a\n  - name: a\n",
			wantErr: "duplicate job name",
		},
		{
			name:    "job without command",
			content: "workflow: w\ndefaults:\n  secretShortCircuit: fail\njobs:\n  - name: a\n",
			wantErr: "command is required",
		},
		{
			name:    "bad duration",
			content: "workflow: w\ndefaults:\n  secretShortCircuit: fail\n  attemptTimeout: soon\n",
			wantErr: "defaults.attemptTimeout",
		},
		{
			name:    "unknown backoff",
			content: "workflow: w\ndefaults:\n  secretShortCircuit: fail\n  backoff:\n    strategy: linear\n",
			wantErr: "unknown backoff strategy",
		},
		{
			name:    "dynamodb without table",
			content: "workflow: w\ndefaults:\n  secretShortCircuit: fail\nstore:\n  provider: dynamodb\n",
			wantErr: "tableName is required",
		},
		{
			name:    "secretsmanager without ids",
			content: "workflow: w\ndefaults:\n  secretShortCircuit: fail\nsecrets:\n  provider: secretsmanager\n",
			wantErr: "secretIds is required",
		},
		{
			name:    "unknown alert",
			content: "workflow: w\ndefaults:\n  secretShortCircuit: fail\nalerts:\n  - type: pager\n",
			wantErr: "unknown alert type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
