// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/rumble/internal/domain/model"
)

// PredictionDependencies defines the interface for prediction operations.
type PredictionDependencies interface {
	SubmitPrediction(ctx context.Context, partyID string, pred model.Prediction) error
	BlockedValues(ctx context.Context, partyID, participantID string, cat model.Category) (map[string]model.Category, error)
}

// PredictionsHandler handles prediction requests.
type PredictionsHandler struct {
	deps PredictionDependencies
}

// NewPredictionsHandler creates a new predictions handler.
func NewPredictionsHandler(deps PredictionDependencies) *PredictionsHandler {
	return &PredictionsHandler{deps: deps}
}

// predictionRequest mirrors the JSON schema for POST /parties/{id}/predictions.
type predictionRequest struct {
	ParticipantID string `json:"participant_id"`
	Kind          string `json:"kind"`
	Division      string `json:"division,omitempty"`
	Slot          int    `json:"slot,omitempty"`
	Prop          string `json:"prop,omitempty"`
	Value         string `json:"value"`
}

func (p predictionRequest) validate() error {
	switch {
	case strings.TrimSpace(p.ParticipantID) == "":
		return errors.New("missing participant_id")
	case strings.TrimSpace(p.Kind) == "":
		return errors.New("missing kind")
	case strings.TrimSpace(p.Value) == "":
		return errors.New("missing value")
	}
	return nil
}

func (p predictionRequest) prediction() model.Prediction {
	return model.Prediction{
		ParticipantID: p.ParticipantID,
		Category: model.Category{
			Kind:     model.Kind(p.Kind),
			Division: model.Division(p.Division),
			Slot:     p.Slot,
			Prop:     p.Prop,
		},
		Value: p.Value,
	}
}

// HandlePostPrediction handles POST /parties/{id}/predictions requests.
func (h *PredictionsHandler) HandlePostPrediction(w http.ResponseWriter, r *http.Request) {
	partyID := r.PathValue("id")
	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.deps.SubmitPrediction(r.Context(), partyID, req.prediction()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// blockedResponse maps a blocked value to the category that blocks it.
type blockedResponse struct {
	Blocked map[string]model.Category `json:"blocked"`
}

// HandleGetBlocked handles GET /parties/{id}/blocked requests. Query
// parameters identify the participant and the target category; the response
// lists values already taken by a conflicting pick.
func (h *PredictionsHandler) HandleGetBlocked(w http.ResponseWriter, r *http.Request) {
	partyID := r.PathValue("id")
	q := r.URL.Query()
	participantID := q.Get("participant_id")
	if participantID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing participant_id"))
		return
	}
	slot := 0
	if s := q.Get("slot"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid slot"))
			return
		}
		slot = n
	}
	cat := model.Category{
		Kind:     model.Kind(q.Get("kind")),
		Division: model.Division(q.Get("division")),
		Slot:     slot,
		Prop:     q.Get("prop"),
	}
	if err := cat.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	blocked, err := h.deps.BlockedValues(r.Context(), partyID, participantID, cat)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blockedResponse{Blocked: blocked})
}
