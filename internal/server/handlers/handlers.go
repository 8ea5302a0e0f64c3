// Package handlers implements HTTP request handlers for the testgate API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dwsmith1983/testgate/internal/gate"
	"github.com/dwsmith1983/testgate/internal/registry"
	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// Gate runs one gate request to completion.
type Gate interface {
	Run(ctx context.Context, req gate.Request) (*types.RunRecord, error)
}

// Project is the static fleet served by the API.
type Project struct {
	Workflow        string
	Jobs            []types.Job
	Secrets         *types.SecretsConfig
	DependenciesKey string
}

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	gate     Gate
	store    store.Store
	registry *registry.Registry
	project  Project
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a new Handlers instance.
func New(g Gate, st store.Store, reg *registry.Registry, project Project) *Handlers {
	return &Handlers{
		gate:     g,
		store:    st,
		registry: reg,
		project:  project,
		logger:   slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// Wait blocks until every run started by the API has returned.
func (h *Handlers) Wait() {
	h.wg.Wait()
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
