// Package memory implements an in-process Store. Runs are lost on exit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// Compile-time interface satisfaction check.
var _ store.Store = (*Store)(nil)

// Store is a mutex-guarded in-memory Store.
type Store struct {
	mu       sync.Mutex
	runs     map[string]types.RunRecord
	runIndex map[string][]string // key -> run ids in insertion order
	events   map[string][]types.Event
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		runs:     make(map[string]types.RunRecord),
		runIndex: make(map[string][]string),
		events:   make(map[string][]types.Event),
	}
}

func (s *Store) PutRun(_ context.Context, run types.RunRecord) error {
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; !exists {
		k := run.Key.String()
		s.runIndex[k] = append(s.runIndex[k], run.RunID)
	}
	s.runs[run.RunID] = copyRun(run)
	return nil
}

func (s *Store) GetRun(_ context.Context, runID string) (*types.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", runID, store.ErrNotFound)
	}
	out := copyRun(run)
	return &out, nil
}

func (s *Store) ListRuns(_ context.Context, key types.RunKey, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = store.DefaultRunLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.runIndex[key.String()]
	runs := make([]types.RunRecord, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		runs = append(runs, copyRun(s.runs[ids[i]]))
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *Store) AppendEvent(_ context.Context, event types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.RunID] = append(s.events[event.RunID], event)
	return nil
}

func (s *Store) ListEvents(_ context.Context, runID string, limit int) ([]types.Event, error) {
	if limit <= 0 {
		limit = store.DefaultEventLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.events[runID]
	start := 0
	if len(all) > limit {
		start = len(all) - limit
	}
	out := make([]types.Event, len(all)-start)
	copy(out, all[start:])
	return out, nil
}

// Events returns every stored event across all runs.
func (s *Store) Events() []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Event
	for _, evs := range s.events {
		out = append(out, evs...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (s *Store) Start(_ context.Context) error { return nil }
func (s *Store) Stop(_ context.Context) error  { return nil }
func (s *Store) Ping(_ context.Context) error  { return nil }

func copyRun(r types.RunRecord) types.RunRecord {
	if r.Outcomes != nil {
		outcomes := make(map[string]types.JobOutcome, len(r.Outcomes))
		for k, v := range r.Outcomes {
			outcomes[k] = v
		}
		r.Outcomes = outcomes
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		r.CompletedAt = &t
	}
	return r
}
