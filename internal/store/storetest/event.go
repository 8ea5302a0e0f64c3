package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// TestEventAppendAndList verifies appending events and listing in chronological order.
func TestEventAppendAndList(t *testing.T, s store.Store) {
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendEvent(ctx, types.Event{
			Kind:      types.EventJobFinished,
			RunID:     "ct-event-al",
			Job:       fmt.Sprintf("job-%d", i),
			Status:    string(types.OutcomeSucceeded),
			Timestamp: now.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	events, err := s.ListEvents(ctx, "ct-event-al", 10)
	require.NoError(t, err)
	require.Len(t, events, 5)
	// Chronological: oldest first
	assert.Equal(t, "job-0", events[0].Job)
	assert.Equal(t, "job-4", events[4].Job)

	other, err := s.ListEvents(ctx, "ct-event-none", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

// TestEventTail verifies that a limit keeps the most recent events, still in
// chronological order, including events appended within the same instant.
func TestEventTail(t *testing.T, s store.Store) {
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 6; i++ {
		require.NoError(t, s.AppendEvent(ctx, types.Event{
			Kind:      types.EventJobSelected,
			RunID:     "ct-event-tail",
			Job:       fmt.Sprintf("job-%d", i),
			Timestamp: now,
		}))
	}

	events, err := s.ListEvents(ctx, "ct-event-tail", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "job-4", events[0].Job)
	assert.Equal(t, "job-5", events[1].Job)
}
