package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// ListEvents returns the most recent events of a run in chronological order.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	events, err := h.store.ListEvents(r.Context(), runID, queryLimit(r, store.DefaultEventLimit, 500))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list events", err)
		return
	}
	if events == nil {
		events = []types.Event{}
	}
	_ = json.NewEncoder(w).Encode(events)
}
