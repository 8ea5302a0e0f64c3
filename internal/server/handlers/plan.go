package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dwsmith1983/testgate/internal/selection"
	"github.com/dwsmith1983/testgate/internal/signal"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// PlanRequest is the body of POST /api/plan.
type PlanRequest struct {
	Trigger string          `json:"trigger"`
	Signal  json.RawMessage `json:"signal,omitempty"`
}

// PlanResponse lists the selection decision for every configured job.
type PlanResponse struct {
	Trigger   types.TriggerEvent   `json:"trigger"`
	Decisions []selection.Decision `json:"decisions"`
	Selected  []string             `json:"selected"`
}

// Plan reports which jobs a run would execute, without running them.
func (h *Handlers) Plan(w http.ResponseWriter, r *http.Request) {
	var body PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}
	trigger, err := types.ParseTriggerEvent(body.Trigger)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "trigger must be manual, pull_request or merge_queue", nil)
		return
	}

	sig := signal.NewDecoder(
		signal.WithDependenciesKey(h.project.DependenciesKey),
		signal.WithLogger(h.logger),
	).Decode(body.Signal)

	decisions := selection.Plan(trigger, h.project.Jobs, sig)
	selected := selection.Selected(decisions)
	if selected == nil {
		selected = []string{}
	}
	_ = json.NewEncoder(w).Encode(PlanResponse{Trigger: trigger, Decisions: decisions, Selected: selected})
}
