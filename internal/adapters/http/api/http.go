// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/rumble/internal/adapters/standings"
	service "github.com/okian/rumble/internal/app"
	"github.com/okian/rumble/internal/domain/conflict"
	"github.com/okian/rumble/internal/domain/lifecycle"
	"github.com/okian/rumble/internal/domain/model"
	"github.com/okian/rumble/internal/domain/scoring"
)

// Entry mirrors the read shape returned by standings queries.
type Entry = standings.Entry

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CreateParty(ctx context.Context, setup service.PartySetup) (string, error)

	SubmitPrediction(ctx context.Context, partyID string, pred model.Prediction) error
	BlockedValues(ctx context.Context, partyID, participantID string, cat model.Category) (map[string]model.Category, error)

	ConfirmEntry(ctx context.Context, partyID, commandID string, div model.Division, slot int, wrestler string, ts time.Time) error
	ConfirmElimination(ctx context.Context, partyID, commandID string, div model.Division, slot, eliminator int, ts time.Time) error
	ConfirmRumbleWinner(ctx context.Context, partyID, commandID string, div model.Division, wrestler string, endedAt time.Time) error
	FreezeFinalFour(ctx context.Context, partyID, commandID string, div model.Division, members []string, at time.Time) error
	DeclareResult(ctx context.Context, partyID, commandID string, cat model.Category, value string, at time.Time) error
	ResetEntry(ctx context.Context, partyID, commandID string, div model.Division, slot int) error
	ResetElimination(ctx context.Context, partyID, commandID string, div model.Division, slot int) error
	ResetResult(ctx context.Context, partyID, commandID string, cat model.Category) error

	Standings(ctx context.Context, partyID string, n int) ([]Entry, error)
	ParticipantRank(ctx context.Context, partyID, participantID string) (Entry, error)
	Snapshot(ctx context.Context, partyID string, div model.Division) (lifecycle.Snapshot, error)
	Results(ctx context.Context, partyID string) ([]model.Result, error)
	Subscribe(ctx context.Context, partyID string) (<-chan model.Update, func(), error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	partiesHandler     *PartiesHandler
	predictionsHandler *PredictionsHandler
	factsHandler       *FactsHandler
	standingsHandler   *StandingsHandler
	snapshotHandler    *SnapshotHandler
	updatesHandler     *UpdatesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		partiesHandler:     NewPartiesHandler(deps),
		predictionsHandler: NewPredictionsHandler(deps),
		factsHandler:       NewFactsHandler(deps),
		standingsHandler:   NewStandingsHandler(deps, maxLimit),
		snapshotHandler:    NewSnapshotHandler(deps),
		updatesHandler:     NewUpdatesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /parties", MetricsMiddleware(s.partiesHandler.HandleCreateParty, "parties"))
	mux.HandleFunc("POST /parties/{id}/predictions", MetricsMiddleware(s.predictionsHandler.HandlePostPrediction, "predictions"))
	mux.HandleFunc("GET /parties/{id}/blocked", MetricsMiddleware(s.predictionsHandler.HandleGetBlocked, "blocked"))
	mux.HandleFunc("POST /parties/{id}/facts", MetricsMiddleware(s.factsHandler.HandlePostFact, "facts"))
	mux.HandleFunc("GET /parties/{id}/standings", MetricsMiddleware(s.standingsHandler.HandleGetStandings, "standings"))
	mux.HandleFunc("GET /parties/{id}/rank/{participantID}", MetricsMiddleware(s.standingsHandler.HandleGetRank, "rank"))
	mux.HandleFunc("GET /parties/{id}/snapshot", MetricsMiddleware(s.snapshotHandler.HandleGetSnapshot, "snapshot"))
	mux.HandleFunc("GET /parties/{id}/results", MetricsMiddleware(s.snapshotHandler.HandleGetResults, "results"))
	mux.HandleFunc("GET /parties/{id}/updates", s.updatesHandler.HandleUpdates)
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates orchestrator and domain errors into HTTP
// status codes: unknown parties are 404, state conflicts are 409,
// everything else the engine rejected is 400.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrPartyNotFound):
		writeError(w, http.StatusNotFound, "party_not_found", err)
	case errors.Is(err, standings.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case isConflict(err):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "not_started", err)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", err)
	}
}

// isConflict reports whether the engine rejected a command because of
// current state rather than malformed input.
func isConflict(err error) bool {
	var violation *conflict.Violation
	if errors.As(err, &violation) {
		return true
	}
	return errors.Is(err, lifecycle.ErrSlotOccupied) ||
		errors.Is(err, lifecycle.ErrDuplicateOccupant) ||
		errors.Is(err, lifecycle.ErrNotActive) ||
		errors.Is(err, lifecycle.ErrHasDependents) ||
		errors.Is(err, scoring.ErrCategoryLocked) ||
		errors.Is(err, scoring.ErrAlreadyResolved)
}
