// Package registry tracks the in-flight run per concurrency key and cancels
// a run when a newer one for the same key begins.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// ErrSuperseded is the cancellation cause of a run replaced by a newer run
// for the same key.
var ErrSuperseded = errors.New("superseded by a newer run")

type handle struct {
	runID  string
	cancel context.CancelCauseFunc
}

// Registry holds at most one in-flight run per key.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*handle
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{runs: make(map[string]*handle)}
}

// Begin registers runID as the in-flight run for key and cancels the run it
// replaces. The returned context ends when this run is superseded or when
// release is called. release is idempotent and only unregisters the run if
// it is still the current one for key.
func (r *Registry) Begin(ctx context.Context, key types.RunKey, runID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)
	h := &handle{runID: runID, cancel: cancel}
	k := key.String()

	r.mu.Lock()
	prev := r.runs[k]
	r.runs[k] = h
	r.mu.Unlock()

	if prev != nil {
		prev.cancel(fmt.Errorf("%w: %s replaced by %s", ErrSuperseded, prev.runID, runID))
	}

	release := func() {
		r.mu.Lock()
		if r.runs[k] == h {
			delete(r.runs, k)
		}
		r.mu.Unlock()
		cancel(nil)
	}
	return runCtx, release
}

// Active returns the in-flight run id for key.
func (r *Registry) Active(key types.RunKey) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.runs[key.String()]
	if !ok {
		return "", false
	}
	return h.runID, true
}

// Len returns the number of keys with an in-flight run.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// CancelAll cancels every in-flight run with cause and empties the registry.
func (r *Registry) CancelAll(cause error) {
	r.mu.Lock()
	runs := r.runs
	r.runs = make(map[string]*handle)
	r.mu.Unlock()

	for _, h := range runs {
		h.cancel(cause)
	}
}
