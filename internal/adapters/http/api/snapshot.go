// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/rumble/internal/domain/lifecycle"
	"github.com/okian/rumble/internal/domain/model"
)

// SnapshotDependencies defines the interface for match state queries.
type SnapshotDependencies interface {
	Snapshot(ctx context.Context, partyID string, div model.Division) (lifecycle.Snapshot, error)
	Results(ctx context.Context, partyID string) ([]model.Result, error)
}

// SnapshotHandler handles match state queries.
type SnapshotHandler struct {
	deps SnapshotDependencies
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(deps SnapshotDependencies) *SnapshotHandler {
	return &SnapshotHandler{deps: deps}
}

// slotView is the wire shape of one slot in a snapshot response.
type slotView struct {
	Number          int        `json:"number"`
	Occupant        string     `json:"occupant,omitempty"`
	EntryTime       *time.Time `json:"entry_time,omitempty"`
	EliminationTime *time.Time `json:"elimination_time,omitempty"`
	EliminatedBy    int        `json:"eliminated_by,omitempty"`
	Active          bool       `json:"active"`
}

type snapshotResponse struct {
	Division model.Division `json:"division"`
	Slots    []slotView     `json:"slots"`
	Active   int            `json:"active"`
}

// HandleGetSnapshot handles GET /parties/{id}/snapshot?division=mens requests.
func (h *SnapshotHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	partyID := r.PathValue("id")
	div := model.Division(r.URL.Query().Get("division"))
	if !model.ValidDivision(div) {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	snap, err := h.deps.Snapshot(r.Context(), partyID, div)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := snapshotResponse{
		Division: div,
		Slots:    make([]slotView, 0, len(snap.Slots)),
		Active:   snap.ActiveCount(),
	}
	for i := range snap.Slots {
		s := snap.Slots[i]
		view := slotView{
			Number:   s.Number,
			Occupant: s.Occupant,
			Active:   s.Active(),
		}
		if s.Entered() {
			t := s.EntryTime
			view.EntryTime = &t
		}
		if s.Eliminated() {
			t := s.EliminationTime
			view.EliminationTime = &t
			view.EliminatedBy = s.EliminatedBy
		}
		resp.Slots = append(resp.Slots, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetResults handles GET /parties/{id}/results requests.
func (h *SnapshotHandler) HandleGetResults(w http.ResponseWriter, r *http.Request) {
	partyID := r.PathValue("id")
	results, err := h.deps.Results(r.Context(), partyID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
