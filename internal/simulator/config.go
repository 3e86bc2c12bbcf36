// Package simulator drives a rumble party service through a scripted match
// over its public HTTP API: create a party, file everyone's picks, feed the
// host facts in broadcast order and check the resulting standings against
// the script's known outcome.
package simulator

import "time"

// Config holds configuration for one simulated party.
type Config struct {
	BaseURL      string        // Base URL of the service
	Participants int           // Number of predicting participants
	Workers      int           // Concurrent workers for prediction submission
	Timeout      time.Duration // HTTP request timeout
	TopN         int           // Standings page size to fetch
	LogFile      string        // Log file for simulator output
	Verbose      bool          // Enable verbose logging
}

// prediction mirrors the POST /parties/{id}/predictions request body.
type prediction struct {
	ParticipantID string `json:"participant_id"`
	Kind          string `json:"kind"`
	Division      string `json:"division,omitempty"`
	Slot          int    `json:"slot,omitempty"`
	Prop          string `json:"prop,omitempty"`
	Value         string `json:"value"`
}

// category mirrors the category object inside fact requests.
type category struct {
	Kind     string `json:"kind"`
	Division string `json:"division,omitempty"`
	Slot     int    `json:"slot,omitempty"`
	Prop     string `json:"prop,omitempty"`
}

// fact mirrors the POST /parties/{id}/facts command envelope.
type fact struct {
	CommandID  string    `json:"command_id"`
	Kind       string    `json:"kind"`
	Division   string    `json:"division,omitempty"`
	Slot       int       `json:"slot,omitempty"`
	Eliminator int       `json:"eliminator,omitempty"`
	Wrestler   string    `json:"wrestler,omitempty"`
	Members    []string  `json:"members,omitempty"`
	Category   *category `json:"category,omitempty"`
	Value      string    `json:"value,omitempty"`
	TS         string    `json:"ts,omitempty"`
}

// partyRequest mirrors the POST /parties request body.
type partyRequest struct {
	Roster     map[string][]string `json:"roster,omitempty"`
	Matches    []string            `json:"matches,omitempty"`
	ChaosProps []string            `json:"chaos_props,omitempty"`
}

// partyResponse is the POST /parties reply.
type partyResponse struct {
	PartyID string `json:"party_id"`
}

// entry is one standings row.
type entry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Points        int    `json:"points"`
}

// Stats holds simulation statistics.
type Stats struct {
	PredictionsSubmitted int
	PredictionsFailed    int
	FactsConfirmed       int
	FactsFailed          int
	RanksVerified        int
	RankMismatches       int
	StandingsEntries     int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
