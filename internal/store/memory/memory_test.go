package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/internal/store/storetest"
	"github.com/dwsmith1983/testgate/pkg/types"
)

func TestRunRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := types.RunKey{Workflow: "integration", Subject: "pr-7"}

	run := types.RunRecord{
		RunID:     "run-1",
		Key:       key,
		Status:    types.RunRunning,
		Outcomes:  map[string]types.JobOutcome{"aws": types.OutcomeSucceeded},
		StartedAt: time.Now(),
	}
	require.NoError(t, s.PutRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, types.RunRunning, got.Status)

	got.Outcomes["aws"] = types.OutcomeFailed
	again, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSucceeded, again.Outcomes["aws"], "stored record must not alias caller maps")

	run.Status = types.RunCompleted
	require.NoError(t, s.PutRun(ctx, run))
	runs, err := s.ListRuns(ctx, key, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1, "update must not duplicate the index entry")
	assert.Equal(t, types.RunCompleted, runs[0].Status)
}

func TestGetRun_NotFound(t *testing.T) {
	_, err := New().GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPutRun_RequiresID(t *testing.T) {
	assert.Error(t, New().PutRun(context.Background(), types.RunRecord{}))
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := types.RunKey{Workflow: "integration", Subject: "main"}
	base := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.PutRun(ctx, types.RunRecord{RunID: id, Key: key, StartedAt: base.Add(time.Duration(i) * time.Second)}))
	}
	require.NoError(t, s.PutRun(ctx, types.RunRecord{RunID: "other", Key: types.RunKey{Workflow: "integration", Subject: "pr-1"}}))

	runs, err := s.ListRuns(ctx, key, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)
	assert.Equal(t, "b", runs[1].RunID)
}

func TestEvents_ChronologicalTail(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now()

	kinds := []types.EventKind{types.EventRunStarted, types.EventJobSelected, types.EventJobFinished, types.EventRunCompleted}
	for i, k := range kinds {
		require.NoError(t, s.AppendEvent(ctx, types.Event{Kind: k, RunID: "run-1", Timestamp: base.Add(time.Duration(i) * time.Millisecond)}))
	}
	require.NoError(t, s.AppendEvent(ctx, types.Event{Kind: types.EventRunStarted, RunID: "run-2"}))

	evs, err := s.ListEvents(ctx, "run-1", 2)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, types.EventJobFinished, evs[0].Kind)
	assert.Equal(t, types.EventRunCompleted, evs[1].Kind)

	assert.Len(t, s.Events(), 5)
}

func TestConformance(t *testing.T) {
	storetest.RunAll(t, New())
}
