// Package standings defines the ranked standings store interface and errors.
package standings

import "context"

// Entry represents one standings row.
type Entry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Points        int    `json:"points"`
}

// Store provides read/write access to one party's standings.
type Store interface {
	// Apply sets a participant's absolute point total, inserting the
	// participant on first sight.
	Apply(ctx context.Context, participantID string, points int) error

	// Rank returns the current rank and total for a participant.
	// Returns ErrNotFound if the participant is unknown.
	Rank(ctx context.Context, participantID string) (Entry, error)

	// TopN returns the top-N entries ordered by points desc, then
	// participant id asc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of participants tracked.
	Count(ctx context.Context) int
}
