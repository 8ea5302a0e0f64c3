package executor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/testgate/internal/command"
	"github.com/dwsmith1983/testgate/internal/testutil"
	"github.com/dwsmith1983/testgate/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecutor(r command.Runner, p types.RetryPolicy) *Executor {
	return New(r, WithPolicy(p), WithLogger(quietLogger()))
}

func TestExecute_Outcomes(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		attempts  int
		want      types.JobOutcome
		wantCalls int
	}{
		{"passes first try", 0, 3, types.OutcomeSucceeded, 1},
		{"passes on retry", 2, 3, types.OutcomeSucceeded, 3},
		{"exhausts attempts", 3, 3, types.OutcomeFailed, 3},
		{"single attempt fails", 1, 1, types.OutcomeFailed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.NewScriptedRunner().FailTimes("aws", tt.failures)
			e := newExecutor(r, types.RetryPolicy{MaxAttempts: tt.attempts, AttemptTimeout: time.Minute})

			got := e.Execute(context.Background(), types.Job{Name: "aws"})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, r.Calls("aws"))
		})
	}
}

func TestExecute_Deterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		r := testutil.NewScriptedRunner().FailTimes("gcp", 1)
		e := newExecutor(r, types.RetryPolicy{MaxAttempts: 2})
		assert.Equal(t, types.OutcomeSucceeded, e.Execute(context.Background(), types.Job{Name: "gcp"}))
	}
}

func TestExecute_LaunchFailureConsumesAttempt(t *testing.T) {
	r := testutil.NewScriptedRunner().Script("azure", command.ErrEmptyCommand, nil)
	e := newExecutor(r, types.RetryPolicy{MaxAttempts: 3})

	assert.Equal(t, types.OutcomeSucceeded, e.Execute(context.Background(), types.Job{Name: "azure"}))
	assert.Equal(t, 2, r.Calls("azure"))
}

func TestExecute_JobOverridesPolicy(t *testing.T) {
	r := testutil.NewScriptedRunner().AlwaysFail("aws")
	e := newExecutor(r, types.RetryPolicy{MaxAttempts: 3})

	assert.Equal(t, types.OutcomeFailed, e.Execute(context.Background(), types.Job{Name: "aws", MaxAttempts: 5}))
	assert.Equal(t, 5, r.Calls("aws"))
}

func TestExecute_AttemptTimeoutIsFailure(t *testing.T) {
	r := testutil.NewScriptedRunner().Block("slow")
	e := newExecutor(r, types.RetryPolicy{MaxAttempts: 2, AttemptTimeout: 20 * time.Millisecond})

	start := time.Now()
	assert.Equal(t, types.OutcomeFailed, e.Execute(context.Background(), types.Job{Name: "slow"}))
	assert.Equal(t, 2, r.Calls("slow"))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	r := testutil.NewScriptedRunner()
	e := newExecutor(r, types.RetryPolicy{MaxAttempts: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, types.OutcomeFailed, e.Execute(ctx, types.Job{Name: "aws"}))
	assert.Equal(t, 0, r.Calls("aws"))
}

func TestExecute_CancelAbandonsRemainingAttempts(t *testing.T) {
	r := testutil.NewScriptedRunner().Block("aws")
	e := newExecutor(r, types.RetryPolicy{MaxAttempts: 3, AttemptTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan types.JobOutcome, 1)
	go func() { done <- e.Execute(ctx, types.Job{Name: "aws"}) }()

	testutil.WaitFor(t, 2*time.Second, func() bool { return r.Calls("aws") == 1 }, "first attempt started")
	cancel()

	select {
	case got := <-done:
		assert.Equal(t, types.OutcomeFailed, got)
	case <-time.After(5 * time.Second):
		t.Fatal("executor did not stop after cancellation")
	}
	assert.Equal(t, 1, r.Calls("aws"))
}

func TestExecute_BackoffDelays(t *testing.T) {
	tests := []struct {
		name   string
		policy types.RetryPolicy
		want   []time.Duration
	}{
		{
			name:   "none",
			policy: types.RetryPolicy{MaxAttempts: 3, Backoff: types.BackoffNone},
			want:   []time.Duration{0, 0},
		},
		{
			name:   "fixed",
			policy: types.RetryPolicy{MaxAttempts: 3, Backoff: types.BackoffFixed, BackoffDelay: time.Second},
			want:   []time.Duration{time.Second, time.Second},
		},
		{
			name: "exponential",
			policy: types.RetryPolicy{
				MaxAttempts: 4, Backoff: types.BackoffExponential,
				BackoffDelay: time.Second, BackoffMultiplier: 3, MaxBackoff: 5 * time.Second,
			},
			want: []time.Duration{time.Second, 3 * time.Second, 5 * time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.NewScriptedRunner().AlwaysFail("aws")
			e := newExecutor(r, tt.policy)

			var delays []time.Duration
			e.sleep = func(_ context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			}

			require.Equal(t, types.OutcomeFailed, e.Execute(context.Background(), types.Job{Name: "aws"}))
			assert.Equal(t, tt.want, delays)
		})
	}
}

func TestExecute_ShellRunner(t *testing.T) {
	r := command.NewShellRunner(command.WithOutput(io.Discard, io.Discard))
	e := newExecutor(r, types.RetryPolicy{MaxAttempts: 2, AttemptTimeout: 10 * time.Second})

	assert.Equal(t, types.OutcomeSucceeded, e.Execute(context.Background(), types.Job{Name: "ok", Command: "true"}))
	assert.Equal(t, types.OutcomeFailed, e.Execute(context.Background(), types.Job{Name: "bad", Command: "exit 1"}))
}
