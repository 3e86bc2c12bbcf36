// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"github.com/okian/rumble/internal/domain/model"
	"github.com/okian/rumble/internal/domain/scoring"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// UpdateBusSize bounds the in-memory update bus.
	UpdateBusSize int `koanf:"update_bus_size"`

	// BroadcasterCount sets the number of update broadcasters.
	BroadcasterCount int `koanf:"broadcaster_count"`

	// DedupeSize sets the size of the command idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// SubscriberBuffer sets the per-subscriber update channel buffer.
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// MaxStandingsLimit caps GET /parties/{id}/standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`

	// Weights maps category kinds to their point values.
	Weights map[string]int `koanf:"weights"`

	// NoShowPenalty is the (non-positive) score for predicting a wrestler
	// who never entered.
	NoShowPenalty int `koanf:"no_show_penalty"`

	// Roster maps divisions to the wrestlers eligible for prediction values.
	// Party setups may override it per event.
	Roster map[string][]string `koanf:"roster"`

	// Matches lists the undercard match ids available for match-winner picks.
	Matches []string `koanf:"matches"`

	// ChaosProps lists the yes/no novelty props on the card.
	ChaosProps []string `koanf:"chaos_props"`
}

// New creates a Config with defaults.
func New() *Config {
	w := scoring.DefaultWeights()
	weights := make(map[string]int, len(w.Points))
	for kind, points := range w.Points {
		weights[string(kind)] = points
	}
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		UpdateBusSize:     10_000,
		BroadcasterCount:  2,
		DedupeSize:        50_000,
		SubscriberBuffer:  64,
		MaxStandingsLimit: 100,
		Weights:           weights,
		NoShowPenalty:     w.NoShowPenalty,
	}
}

// ScoringWeights converts the configured weight table into the domain type.
func (c *Config) ScoringWeights() scoring.Weights {
	w := scoring.Weights{
		Points:        make(map[model.Kind]int, len(c.Weights)),
		NoShowPenalty: c.NoShowPenalty,
	}
	for kind, points := range c.Weights {
		w.Points[model.Kind(kind)] = points
	}
	return w
}

// DivisionRoster converts the configured roster into the domain type.
func (c *Config) DivisionRoster() map[model.Division][]string {
	if len(c.Roster) == 0 {
		return nil
	}
	roster := make(map[model.Division][]string, len(c.Roster))
	for div, names := range c.Roster {
		roster[model.Division(div)] = names
	}
	return roster
}
