package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// TestLifecycle verifies Start, Ping and Stop succeed on a healthy store.
func TestLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.NoError(t, s.Ping(ctx))
}

// TestRunPutGet verifies put, get, and not-found behavior.
func TestRunPutGet(t *testing.T, s store.Store) {
	ctx := context.Background()

	run := types.RunRecord{
		RunID:     "ct-run-pg",
		Key:       types.RunKey{Workflow: "ct", Subject: "pr-pg"},
		Trigger:   types.TriggerPullRequest,
		Status:    types.RunPending,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, s.PutRun(ctx, run))

	got, err := s.GetRun(ctx, "ct-run-pg")
	require.NoError(t, err)
	assert.Equal(t, "ct-run-pg", got.RunID)
	assert.Equal(t, run.Key, got.Key)
	assert.Equal(t, types.RunPending, got.Status)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))

	_, err = s.GetRun(ctx, "ct-nonexistent-run")
	assert.True(t, errors.Is(err, store.ErrNotFound), "expected ErrNotFound, got %v", err)
}

// TestRunUpdate verifies that a second put replaces the record in place,
// both for direct lookup and in the key listing.
func TestRunUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := types.RunKey{Workflow: "ct", Subject: "pr-update"}

	run := types.RunRecord{
		RunID:     "ct-run-update",
		Key:       key,
		Status:    types.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, s.PutRun(ctx, run))

	done := run.StartedAt.Add(time.Minute)
	run.Status = types.RunCompleted
	run.Verdict = types.VerdictFailed
	run.Outcomes = map[string]types.JobOutcome{"aws": types.OutcomeFailed, "gcp": types.OutcomeSkipped}
	run.CompletedAt = &done
	require.NoError(t, s.PutRun(ctx, run))

	got, err := s.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, got.Status)
	assert.Equal(t, types.VerdictFailed, got.Verdict)
	assert.Equal(t, run.Outcomes, got.Outcomes)
	require.NotNil(t, got.CompletedAt)

	runs, err := s.ListRuns(ctx, key, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1, "an updated run is listed once")
	assert.Equal(t, types.RunCompleted, runs[0].Status)
}

// TestRunList verifies listing runs with limit and newest-first ordering.
func TestRunList(t *testing.T, s store.Store) {
	ctx := context.Background()
	key := types.RunKey{Workflow: "ct", Subject: "pr-list"}

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.PutRun(ctx, types.RunRecord{
			RunID:     fmt.Sprintf("ct-list-%d", i),
			Key:       key,
			Status:    types.RunCompleted,
			Verdict:   types.VerdictSucceeded,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	runs, err := s.ListRuns(ctx, key, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "ct-list-4", runs[0].RunID)
	assert.Equal(t, "ct-list-3", runs[1].RunID)
	assert.Equal(t, "ct-list-2", runs[2].RunID)
}

// TestRunListKeyIsolation verifies runs of one key never appear under another.
func TestRunListKeyIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.PutRun(ctx, types.RunRecord{
		RunID: "ct-iso-a", Key: types.RunKey{Workflow: "ct", Subject: "pr-iso-a"}, Status: types.RunPending, StartedAt: now,
	}))
	require.NoError(t, s.PutRun(ctx, types.RunRecord{
		RunID: "ct-iso-b", Key: types.RunKey{Workflow: "ct", Subject: "pr-iso-b"}, Status: types.RunPending, StartedAt: now,
	}))

	runs, err := s.ListRuns(ctx, types.RunKey{Workflow: "ct", Subject: "pr-iso-a"}, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ct-iso-a", runs[0].RunID)

	runs, err = s.ListRuns(ctx, types.RunKey{Workflow: "other", Subject: "pr-iso-a"}, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
