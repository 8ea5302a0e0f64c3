// Package store defines the storage backend for run records and events.
package store

import (
	"context"
	"errors"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// ErrNotFound is returned when a run does not exist or has expired.
var ErrNotFound = errors.New("not found")

// Default list limits.
const (
	DefaultRunLimit   = 10
	DefaultEventLimit = 50
)

// Store persists gate runs and their audit trail.
type Store interface {
	// Run records
	PutRun(ctx context.Context, run types.RunRecord) error
	GetRun(ctx context.Context, runID string) (*types.RunRecord, error)
	// ListRuns returns recent runs for a key, newest first.
	ListRuns(ctx context.Context, key types.RunKey, limit int) ([]types.RunRecord, error)

	// Event log, append-only
	AppendEvent(ctx context.Context, event types.Event) error
	// ListEvents returns the most recent events of a run in chronological order.
	ListEvents(ctx context.Context, runID string, limit int) ([]types.Event, error)

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
