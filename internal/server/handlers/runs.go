package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dwsmith1983/testgate/internal/gate"
	"github.com/dwsmith1983/testgate/internal/secrets"
	"github.com/dwsmith1983/testgate/internal/signal"
	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/pkg/types"
)

const maxRunLimit = 100

// RunRequest is the body of POST /api/runs.
type RunRequest struct {
	RunID            string          `json:"runId,omitempty"`
	Workflow         string          `json:"workflow,omitempty"`
	Subject          string          `json:"subject"`
	Trigger          string          `json:"trigger"`
	Signal           json.RawMessage `json:"signal,omitempty"`
	SecretsAvailable bool            `json:"secretsAvailable,omitempty"`
	HeadRepo         string          `json:"headRepo,omitempty"`
	BaseRepo         string          `json:"baseRepo,omitempty"`
}

// StartRun accepts a run and executes it in the background. A newer run for
// the same workflow and subject cancels the one in progress.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}
	trigger, err := types.ParseTriggerEvent(body.Trigger)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "trigger must be manual, pull_request or merge_queue", nil)
		return
	}
	if body.Subject == "" {
		h.writeError(w, http.StatusBadRequest, "subject is required", nil)
		return
	}

	key := types.RunKey{Workflow: body.Workflow, Subject: body.Subject}
	if key.Workflow == "" {
		key.Workflow = h.project.Workflow
	}
	runID := body.RunID
	if runID == "" {
		runID = gate.NewRunID()
	}

	logger := h.logger.With("runId", runID, "key", key.String())
	sig := signal.NewDecoder(
		signal.WithDependenciesKey(h.project.DependenciesKey),
		signal.WithLogger(logger),
	).Decode(body.Signal)

	// Register before responding so a later request for the same key
	// always supersedes this one.
	ctx, release := h.registry.Begin(context.WithoutCancel(r.Context()), key, runID)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer release()

		available := false
		checker, err := secrets.New(ctx, h.project.Secrets, secrets.Options{
			Available: body.SecretsAvailable,
			HeadRepo:  body.HeadRepo,
			BaseRepo:  body.BaseRepo,
		})
		if err != nil {
			logger.Warn("secrets checker unavailable, treating secrets as unavailable", "error", err)
		} else {
			available = secrets.Resolve(ctx, checker, logger)
		}

		_, err = h.gate.Run(ctx, gate.Request{
			RunID:            runID,
			Key:              key,
			Trigger:          trigger,
			Jobs:             h.project.Jobs,
			Signal:           sig,
			SecretsAvailable: available,
		})
		if err != nil && !errors.Is(err, gate.ErrCancelled) {
			logger.Error("run failed", "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"runId":  runID,
		"key":    key,
		"status": types.RunPending,
	})
}

// GetRun returns a single run record.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to load run", err)
		return
	}
	_ = json.NewEncoder(w).Encode(run)
}

// ListRuns returns recent runs for a workflow and subject, newest first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := types.RunKey{Workflow: q.Get("workflow"), Subject: q.Get("subject")}
	if key.Workflow == "" {
		key.Workflow = h.project.Workflow
	}
	if key.Subject == "" {
		h.writeError(w, http.StatusBadRequest, "subject is required", nil)
		return
	}

	runs, err := h.store.ListRuns(r.Context(), key, queryLimit(r, store.DefaultRunLimit, maxRunLimit))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []types.RunRecord{}
	}
	_ = json.NewEncoder(w).Encode(runs)
}

func queryLimit(r *http.Request, def, limitMax int) int {
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= limitMax {
			return n
		}
	}
	return def
}
