// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/rumble/internal/domain/model"
)

// Fact kinds accepted by POST /parties/{id}/facts.
const (
	factEntry            = "entry"
	factElimination      = "elimination"
	factRumbleWinner     = "rumble_winner"
	factFinalFour        = "final_four"
	factDeclareResult    = "declare_result"
	factResetEntry       = "reset_entry"
	factResetElimination = "reset_elimination"
	factResetResult      = "reset_result"
)

// FactDependencies defines the interface for host fact commands.
type FactDependencies interface {
	ConfirmEntry(ctx context.Context, partyID, commandID string, div model.Division, slot int, wrestler string, ts time.Time) error
	ConfirmElimination(ctx context.Context, partyID, commandID string, div model.Division, slot, eliminator int, ts time.Time) error
	ConfirmRumbleWinner(ctx context.Context, partyID, commandID string, div model.Division, wrestler string, endedAt time.Time) error
	FreezeFinalFour(ctx context.Context, partyID, commandID string, div model.Division, members []string, at time.Time) error
	DeclareResult(ctx context.Context, partyID, commandID string, cat model.Category, value string, at time.Time) error
	ResetEntry(ctx context.Context, partyID, commandID string, div model.Division, slot int) error
	ResetElimination(ctx context.Context, partyID, commandID string, div model.Division, slot int) error
	ResetResult(ctx context.Context, partyID, commandID string, cat model.Category) error
}

// FactsHandler handles host fact commands.
type FactsHandler struct {
	deps FactDependencies
}

// NewFactsHandler creates a new facts handler.
func NewFactsHandler(deps FactDependencies) *FactsHandler {
	return &FactsHandler{deps: deps}
}

// factRequest is the command envelope for POST /parties/{id}/facts. Kind
// selects the operation; the remaining fields are interpreted per kind.
// CommandID makes retries over flaky venue networks idempotent.
type factRequest struct {
	CommandID  string          `json:"command_id"`
	Kind       string          `json:"kind"`
	Division   string          `json:"division,omitempty"`
	Slot       int             `json:"slot,omitempty"`
	Eliminator int             `json:"eliminator,omitempty"` // 0 means unassisted
	Wrestler   string          `json:"wrestler,omitempty"`
	Members    []string        `json:"members,omitempty"`
	Category   *model.Category `json:"category,omitempty"`
	Value      string          `json:"value,omitempty"`
	TS         string          `json:"ts,omitempty"`
}

func (f factRequest) validate() error {
	switch {
	case strings.TrimSpace(f.CommandID) == "":
		return errors.New("missing command_id")
	case strings.TrimSpace(f.Kind) == "":
		return errors.New("missing kind")
	}
	switch f.Kind {
	case factEntry, factElimination, factRumbleWinner, factFinalFour:
		if strings.TrimSpace(f.TS) == "" {
			return errors.New("missing ts")
		}
	case factDeclareResult, factResetResult:
		if f.Category == nil {
			return errors.New("missing category")
		}
	case factResetEntry, factResetElimination:
	default:
		return fmt.Errorf("unknown fact kind %q", f.Kind)
	}
	if f.TS != "" {
		if _, err := time.Parse(time.RFC3339, f.TS); err != nil {
			return errors.New("invalid ts; must be RFC3339")
		}
	}
	return nil
}

func (f factRequest) timestamp() time.Time {
	if f.TS == "" {
		return time.Now()
	}
	ts, _ := time.Parse(time.RFC3339, f.TS)
	return ts
}

// HandlePostFact handles POST /parties/{id}/facts requests.
func (h *FactsHandler) HandlePostFact(w http.ResponseWriter, r *http.Request) {
	partyID := r.PathValue("id")
	var req factRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	ctx := r.Context()
	div := model.Division(req.Division)
	ts := req.timestamp()

	var err error
	switch req.Kind {
	case factEntry:
		err = h.deps.ConfirmEntry(ctx, partyID, req.CommandID, div, req.Slot, req.Wrestler, ts)
	case factElimination:
		err = h.deps.ConfirmElimination(ctx, partyID, req.CommandID, div, req.Slot, req.Eliminator, ts)
	case factRumbleWinner:
		err = h.deps.ConfirmRumbleWinner(ctx, partyID, req.CommandID, div, req.Wrestler, ts)
	case factFinalFour:
		err = h.deps.FreezeFinalFour(ctx, partyID, req.CommandID, div, req.Members, ts)
	case factDeclareResult:
		err = h.deps.DeclareResult(ctx, partyID, req.CommandID, *req.Category, req.Value, ts)
	case factResetEntry:
		err = h.deps.ResetEntry(ctx, partyID, req.CommandID, div, req.Slot)
	case factResetElimination:
		err = h.deps.ResetElimination(ctx, partyID, req.CommandID, div, req.Slot)
	case factResetResult:
		err = h.deps.ResetResult(ctx, partyID, req.CommandID, *req.Category)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "confirmed"})
}
