// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/rumble/internal/app"
	"github.com/okian/rumble/internal/domain/model"
	"github.com/okian/rumble/internal/domain/scoring"
)

// PartyCreator defines the interface for party creation.
type PartyCreator interface {
	CreateParty(ctx context.Context, setup service.PartySetup) (string, error)
}

// PartiesHandler handles party creation requests.
type PartiesHandler struct {
	deps PartyCreator
}

// NewPartiesHandler creates a new parties handler.
func NewPartiesHandler(deps PartyCreator) *PartiesHandler {
	return &PartiesHandler{deps: deps}
}

// partyRequest mirrors the JSON schema for POST /parties. Every field is
// optional; omitted ones fall back to the service defaults.
type partyRequest struct {
	Weights       map[string]int              `json:"weights,omitempty"`
	NoShowPenalty *int                        `json:"no_show_penalty,omitempty"`
	Roster        map[string][]string         `json:"roster,omitempty"`
	Matches       []string                    `json:"matches,omitempty"`
	ChaosProps    []string                    `json:"chaos_props,omitempty"`
}

type partyResponse struct {
	PartyID string `json:"party_id"`
}

func (p partyRequest) setup() service.PartySetup {
	setup := service.PartySetup{
		Matches:    p.Matches,
		ChaosProps: p.ChaosProps,
	}
	if p.Weights != nil {
		w := &scoring.Weights{Points: make(map[model.Kind]int, len(p.Weights))}
		for kind, points := range p.Weights {
			w.Points[model.Kind(kind)] = points
		}
		if p.NoShowPenalty != nil {
			w.NoShowPenalty = *p.NoShowPenalty
		}
		setup.Weights = w
	}
	if p.Roster != nil {
		setup.Roster = make(map[model.Division][]string, len(p.Roster))
		for div, names := range p.Roster {
			setup.Roster[model.Division(div)] = names
		}
	}
	return setup
}

// HandleCreateParty handles POST /parties requests.
func (h *PartiesHandler) HandleCreateParty(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	id, err := h.deps.CreateParty(r.Context(), req.setup())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, partyResponse{PartyID: id})
}
