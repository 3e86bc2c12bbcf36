// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/rumble/internal/domain/model"
)

const heartbeatInterval = 15 * time.Second

// UpdatesDependencies defines the interface for live update streams.
type UpdatesDependencies interface {
	Subscribe(ctx context.Context, partyID string) (<-chan model.Update, func(), error)
}

// UpdatesHandler streams party updates over Server-Sent Events.
type UpdatesHandler struct {
	deps UpdatesDependencies
}

// NewUpdatesHandler creates a new updates handler.
func NewUpdatesHandler(deps UpdatesDependencies) *UpdatesHandler {
	return &UpdatesHandler{deps: deps}
}

// HandleUpdates handles GET /parties/{id}/updates requests. The connection
// stays open until the client disconnects or the service shuts down; a
// comment heartbeat keeps idle proxies from cutting the stream.
func (h *UpdatesHandler) HandleUpdates(w http.ResponseWriter, r *http.Request) {
	partyID := r.PathValue("id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", ErrStreamingUnsupported)
		return
	}

	updates, cancel, err := h.deps.Subscribe(r.Context(), partyID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case u, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(u)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", u.Type, payload)
			flusher.Flush()
		}
	}
}
