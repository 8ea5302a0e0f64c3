package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/testgate/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var prKey = types.RunKey{Workflow: "integration", Subject: "pr-42"}

func TestBegin_SupersedesPreviousRun(t *testing.T) {
	r := New()

	first, releaseFirst := r.Begin(context.Background(), prKey, "run-1")
	second, releaseSecond := r.Begin(context.Background(), prKey, "run-2")
	defer releaseSecond()

	require.Error(t, first.Err())
	assert.ErrorIs(t, context.Cause(first), ErrSuperseded)
	assert.NoError(t, second.Err())

	id, ok := r.Active(prKey)
	require.True(t, ok)
	assert.Equal(t, "run-2", id)

	releaseFirst()
	id, ok = r.Active(prKey)
	require.True(t, ok, "stale release must not remove the newer run")
	assert.Equal(t, "run-2", id)
	assert.Equal(t, 1, r.Len())
}

func TestBegin_KeysAreIndependent(t *testing.T) {
	r := New()
	other := types.RunKey{Workflow: "integration", Subject: "main"}

	a, releaseA := r.Begin(context.Background(), prKey, "run-1")
	defer releaseA()
	b, releaseB := r.Begin(context.Background(), other, "run-2")
	defer releaseB()

	assert.NoError(t, a.Err())
	assert.NoError(t, b.Err())
	assert.Equal(t, 2, r.Len())
}

func TestRelease(t *testing.T) {
	r := New()
	ctx, release := r.Begin(context.Background(), prKey, "run-1")

	release()
	release()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.NotErrorIs(t, context.Cause(ctx), ErrSuperseded)
	_, ok := r.Active(prKey)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestBegin_ParentCancellationPropagates(t *testing.T) {
	r := New()
	parent, cancel := context.WithCancel(context.Background())
	ctx, release := r.Begin(parent, prKey, "run-1")
	defer release()

	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestCancelAll(t *testing.T) {
	r := New()
	shutdown := errors.New("shutting down")

	a, releaseA := r.Begin(context.Background(), prKey, "run-1")
	defer releaseA()
	b, releaseB := r.Begin(context.Background(), types.RunKey{Workflow: "w", Subject: "s"}, "run-2")
	defer releaseB()

	r.CancelAll(shutdown)
	assert.ErrorIs(t, context.Cause(a), shutdown)
	assert.ErrorIs(t, context.Cause(b), shutdown)
	assert.Equal(t, 0, r.Len())
}

func TestBegin_ConcurrentLeavesOneLiveRun(t *testing.T) {
	r := New()
	const n = 50

	ctxs := make([]context.Context, n)
	releases := make([]func(), n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctxs[i], releases[i] = r.Begin(context.Background(), prKey, fmt.Sprintf("run-%d", i))
		}(i)
	}
	wg.Wait()

	live := 0
	for _, c := range ctxs {
		if c.Err() == nil {
			live++
		}
	}
	assert.Equal(t, 1, live)
	assert.Equal(t, 1, r.Len())

	for _, rel := range releases {
		rel()
	}
	assert.Equal(t, 0, r.Len())
}
