package simulator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Point values the service awards with its default weight table. The
// verification step reuses them to compute what each guest should score.
const (
	rumbleWinnerPoints    = 50
	entrantPoints         = 5
	firstEliminatedPoints = 15
	finalFourPoints       = 20
)

// Ring layout of the scripted match. Every division runs the same card:
// thirty entries in slot order, slots 1 through 26 cleaned out by the
// occupant of slot 27, and the occupant of slot 28 taking the win. That
// leaves slots 27-30 as the final four.
const (
	ringSize        = 30
	eliminatedSlots = 26
	eliminatorSlot  = 27
	winnerSlot      = 28
)

var divisions = []string{"mens", "womens"}

// script is a fully determined match: the party setup, every guest's
// picks and the facts the host will confirm, in broadcast order.
type script struct {
	party       partyRequest
	predictions []prediction
	facts       []fact
	expected    map[string]int // participant ID -> final points
}

// wrestlerName returns the occupant of a slot in a division's roster.
func wrestlerName(division string, slot int) string {
	return fmt.Sprintf("%s-wrestler-%02d", division, slot)
}

// buildScript lays out the whole evening for the given number of guests.
func buildScript(cfg *Config) *script {
	s := &script{
		party:    partyRequest{Roster: map[string][]string{}},
		expected: make(map[string]int, cfg.Participants),
	}

	for _, div := range divisions {
		roster := make([]string, 0, ringSize)
		for slot := 1; slot <= ringSize; slot++ {
			roster = append(roster, wrestlerName(div, slot))
		}
		s.party.Roster[div] = roster
	}

	s.buildPredictions(cfg.Participants)
	s.buildFacts()
	return s
}

// buildPredictions files four picks per guest per division. The pick
// values are spread deterministically over the roster so the expected
// score of every guest is known up front. The spreads are chosen so no
// guest's first-eliminated pick collides with their final-four pick,
// which the service would reject as contradictory.
func (s *script) buildPredictions(participants int) {
	for i := 0; i < participants; i++ {
		id := fmt.Sprintf("guest-%03d", i)
		points := 0

		for _, div := range divisions {
			winnerPick := wrestlerName(div, i%ringSize+1)
			firstOutPick := wrestlerName(div, (i+5)%ringSize+1)
			entrantSlot := i%ringSize + 1
			fourSlot := i%4 + 1
			fourPick := wrestlerName(div, (i*7)%ringSize+1)

			s.predictions = append(s.predictions,
				prediction{ParticipantID: id, Kind: "rumble_winner", Division: div, Value: winnerPick},
				prediction{ParticipantID: id, Kind: "first_eliminated", Division: div, Value: firstOutPick},
				prediction{ParticipantID: id, Kind: "entrant", Division: div, Slot: entrantSlot, Value: wrestlerName(div, entrantSlot)},
				prediction{ParticipantID: id, Kind: "final_four", Division: div, Slot: fourSlot, Value: fourPick},
			)

			// Entrant picks name the slot's own occupant, so they always hit.
			points += entrantPoints
			if winnerPick == wrestlerName(div, winnerSlot) {
				points += rumbleWinnerPoints
			}
			if firstOutPick == wrestlerName(div, 1) {
				points += firstEliminatedPoints
			}
			if fourPick == wrestlerName(div, eliminatorSlot+fourSlot-1) {
				points += finalFourPoints
			}
		}

		s.expected[id] = points
	}
}

// buildFacts emits both divisions' matches back to back: entries at
// ninety-second intervals, then the eliminations, then the winner call.
func (s *script) buildFacts() {
	base := time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC)

	for _, div := range divisions {
		for slot := 1; slot <= ringSize; slot++ {
			s.facts = append(s.facts, fact{
				CommandID: uuid.NewString(),
				Kind:      "entry",
				Division:  div,
				Slot:      slot,
				Wrestler:  wrestlerName(div, slot),
				TS:        base.Add(time.Duration(slot) * 90 * time.Second).Format(time.RFC3339),
			})
		}

		for i := 1; i <= eliminatedSlots; i++ {
			s.facts = append(s.facts, fact{
				CommandID:  uuid.NewString(),
				Kind:       "elimination",
				Division:   div,
				Slot:       i,
				Eliminator: eliminatorSlot,
				TS:         base.Add(45*time.Minute + time.Duration(i)*30*time.Second).Format(time.RFC3339),
			})
		}

		s.facts = append(s.facts, fact{
			CommandID: uuid.NewString(),
			Kind:      "rumble_winner",
			Division:  div,
			Wrestler:  wrestlerName(div, winnerSlot),
			TS:        base.Add(time.Hour).Format(time.RFC3339),
		})

		base = base.Add(90 * time.Minute)
	}
}
