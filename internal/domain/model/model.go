// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// Division identifies one of the two independent 30-slot rumbles in a party.
type Division string

// Known divisions.
const (
	DivisionMens   Division = "mens"
	DivisionWomens Division = "womens"
)

// Divisions lists every valid division.
func Divisions() []Division {
	return []Division{DivisionMens, DivisionWomens}
}

// ValidDivision reports whether d names a known division.
func ValidDivision(d Division) bool {
	return d == DivisionMens || d == DivisionWomens
}

// Kind is a prediction category family. Weights and conflict rules are keyed
// by Kind; a concrete Category adds the division/slot/prop detail.
type Kind string

// Known category kinds.
const (
	KindMatchWinner      Kind = "match_winner"
	KindRumbleWinner     Kind = "rumble_winner"
	KindEntrant          Kind = "entrant"
	KindFirstEliminated  Kind = "first_eliminated"
	KindMostEliminations Kind = "most_eliminations"
	KindLongestDuration  Kind = "longest_duration"
	KindFinalFour        Kind = "final_four"
	KindChaos            Kind = "chaos"
)

// Kinds lists every valid category kind.
func Kinds() []Kind {
	return []Kind{
		KindMatchWinner,
		KindRumbleWinner,
		KindEntrant,
		KindFirstEliminated,
		KindMostEliminations,
		KindLongestDuration,
		KindFinalFour,
		KindChaos,
	}
}

// Category identifies one scoreable question within a party.
//
// The zero values of Division, Slot and Prop mean "not applicable" for the
// kind: match_winner and chaos carry a Prop (match id / prop id) and no
// division, entrant and final_four carry a Division and a Slot, the remaining
// rumble kinds carry only a Division. Category is comparable and used as a
// map key throughout.
type Category struct {
	Kind     Kind     `json:"kind"`
	Division Division `json:"division,omitempty"`
	Slot     int      `json:"slot,omitempty"`
	Prop     string   `json:"prop,omitempty"`
}

// String renders a stable human-readable identifier, used in errors and logs.
func (c Category) String() string {
	switch c.Kind {
	case KindMatchWinner, KindChaos:
		return fmt.Sprintf("%s[%s]", c.Kind, c.Prop)
	case KindEntrant, KindFinalFour:
		return fmt.Sprintf("%s[%s#%d]", c.Kind, c.Division, c.Slot)
	default:
		return fmt.Sprintf("%s[%s]", c.Kind, c.Division)
	}
}

// Validate checks the detail fields against the kind's shape.
func (c Category) Validate() error {
	switch c.Kind {
	case KindMatchWinner, KindChaos:
		if c.Prop == "" {
			return fmt.Errorf("category %s: missing prop", c.Kind)
		}
		if c.Division != "" || c.Slot != 0 {
			return fmt.Errorf("category %s: unexpected division or slot", c.Kind)
		}
	case KindEntrant:
		if !ValidDivision(c.Division) {
			return fmt.Errorf("category %s: invalid division %q", c.Kind, c.Division)
		}
		if c.Slot < 1 || c.Slot > 30 {
			return fmt.Errorf("category %s: slot %d out of range", c.Kind, c.Slot)
		}
	case KindFinalFour:
		if !ValidDivision(c.Division) {
			return fmt.Errorf("category %s: invalid division %q", c.Kind, c.Division)
		}
		if c.Slot < 1 || c.Slot > 4 {
			return fmt.Errorf("category %s: pick slot %d out of range", c.Kind, c.Slot)
		}
	case KindRumbleWinner, KindFirstEliminated, KindMostEliminations, KindLongestDuration:
		if !ValidDivision(c.Division) {
			return fmt.Errorf("category %s: invalid division %q", c.Kind, c.Division)
		}
		if c.Slot != 0 || c.Prop != "" {
			return fmt.Errorf("category %s: unexpected slot or prop", c.Kind)
		}
	default:
		return fmt.Errorf("unknown category kind %q", c.Kind)
	}
	return nil
}

// Prediction is one participant's (category, value) pick.
type Prediction struct {
	ParticipantID string   `json:"participant_id"`
	Category      Category `json:"category"`
	Value         string   `json:"value"`

	// Resolved is set once the category's result has been scored against
	// this prediction; Points is only meaningful while Resolved is true.
	Resolved bool `json:"resolved"`
	Points   int  `json:"points"`
}

// Source tells whether a result was computed from lifecycle state or
// declared by the host.
type Source string

// Result sources.
const (
	SourceDerived  Source = "derived"
	SourceDeclared Source = "declared"
)

// Result is the resolved answer for one category.
type Result struct {
	Category   Category  `json:"category"`
	Value      string    `json:"value,omitempty"`
	Members    []string  `json:"members,omitempty"` // final-four set, exactly 4
	Source     Source    `json:"source"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// ScoreDelta reports one participant's awarded points for a resolved category.
type ScoreDelta struct {
	ParticipantID string   `json:"participant_id"`
	Category      Category `json:"category"`
	Points        int      `json:"points"`
}

// UpdateType labels outbound notifications on the update bus.
type UpdateType string

// Update types.
const (
	UpdateFactConfirmed UpdateType = "fact_confirmed"
	UpdateFactReset     UpdateType = "fact_reset"
	UpdateResolved      UpdateType = "resolved"
	UpdateUnresolved    UpdateType = "unresolved"
	UpdateTotals        UpdateType = "totals"
)

// Update is the payload fanned out to connected clients after each confirmed
// fact or scoring change. Fields beyond Type and PartyID are populated per
// type.
type Update struct {
	Type     UpdateType   `json:"type"`
	PartyID  string       `json:"party_id"`
	Division Division     `json:"division,omitempty"`
	Slot     int          `json:"slot,omitempty"`
	Category *Category    `json:"category,omitempty"`
	Deltas   []ScoreDelta `json:"deltas,omitempty"`
	At       time.Time    `json:"at"`
}
