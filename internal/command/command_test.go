package command

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/testgate/pkg/types"
)

func TestShellRunner_Success(t *testing.T) {
	var out bytes.Buffer
	r := NewShellRunner(WithOutput(&out, &out))

	err := r.Run(context.Background(), types.Job{Name: "aws", Command: `echo "job=$1 env=$TESTGATE_JOB"`})
	require.NoError(t, err)
	assert.Equal(t, "job=aws env=aws\n", out.String())
}

func TestShellRunner_ExtraEnv(t *testing.T) {
	var out bytes.Buffer
	r := NewShellRunner(WithOutput(&out, &out), WithEnv("TESTGATE_TRIGGER=merge_queue"))

	require.NoError(t, r.Run(context.Background(), types.Job{Name: "aws", Command: `printf %s "$TESTGATE_TRIGGER"`}))
	assert.Equal(t, "merge_queue", out.String())
}

func TestShellRunner_NonZeroExit(t *testing.T) {
	var out bytes.Buffer
	r := NewShellRunner(WithOutput(&out, &out))

	ctx := context.Background()
	err := r.Run(ctx, types.Job{Name: "aws", Command: "exit 3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aws")
	assert.Equal(t, types.FailureExit, ClassifyFailure(ctx, err))
}

func TestShellRunner_EmptyCommand(t *testing.T) {
	r := NewShellRunner()
	ctx := context.Background()

	err := r.Run(ctx, types.Job{Name: "aws"})
	assert.ErrorIs(t, err, ErrEmptyCommand)
	assert.Equal(t, types.FailureLaunch, ClassifyFailure(ctx, err))
}

func TestShellRunner_MissingShell(t *testing.T) {
	r := NewShellRunner(WithShell("/definitely/not/a/shell"))
	ctx := context.Background()

	err := r.Run(ctx, types.Job{Name: "aws", Command: "true"})
	require.Error(t, err)
	assert.Equal(t, types.FailureLaunch, ClassifyFailure(ctx, err))
}

func TestShellRunner_TimeoutKillsProcessGroup(t *testing.T) {
	var out bytes.Buffer
	r := NewShellRunner(WithOutput(&out, &out), WithWaitDelay(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Run(ctx, types.Job{Name: "slow", Command: "sleep 30 & sleep 30; wait"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, types.FailureTimeout, ClassifyFailure(ctx, err))
}

func TestClassifyFailure(t *testing.T) {
	assert.Equal(t, types.FailureCategory(""), ClassifyFailure(context.Background(), nil))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, types.FailureCancelled, ClassifyFailure(cancelled, assert.AnError))

	assert.Equal(t, types.FailureLaunch, ClassifyFailure(context.Background(), assert.AnError))
}
