// Package derive computes objective prop answers from a lifecycle snapshot.
//
// Every function is pure: same snapshot in, same answer out, nothing cached.
// Tie-breaks are deterministic and documented per function; the lower slot
// number always wins a tie.
package derive

import (
	"fmt"
	"time"

	"github.com/okian/rumble/internal/domain/lifecycle"
)

// Answer is a derived prop winner: the slot it came from and its occupant.
type Answer struct {
	Slot     int
	Occupant string
}

// FirstEliminated returns the occupant with the earliest elimination time.
// Ties on identical timestamps go to the lower slot number. Returns
// ErrNoEliminations while nobody has been eliminated.
func FirstEliminated(snap lifecycle.Snapshot) (Answer, error) {
	best := -1
	for i := range snap.Slots {
		s := snap.Slots[i]
		if !s.Eliminated() {
			continue
		}
		if best < 0 || s.EliminationTime.Before(snap.Slots[best].EliminationTime) {
			best = i
		}
	}
	if best < 0 {
		return Answer{}, ErrNoEliminations
	}
	return Answer{Slot: snap.Slots[best].Number, Occupant: snap.Slots[best].Occupant}, nil
}

// MostEliminations returns the occupant credited with the most eliminations,
// with the count. Ties go to the lower slot number. Unassisted eliminations
// (EliminatorOutside) credit nobody. Returns ErrNoEliminations while no slot
// has a credited elimination.
func MostEliminations(snap lifecycle.Snapshot) (Answer, int, error) {
	counts := make(map[int]int)
	for i := range snap.Slots {
		s := snap.Slots[i]
		if s.Eliminated() && s.EliminatedBy != lifecycle.EliminatorOutside {
			counts[s.EliminatedBy]++
		}
	}
	best, bestCount := 0, 0
	for number := 1; number <= lifecycle.SlotCount; number++ {
		if c := counts[number]; c > bestCount {
			best, bestCount = number, c
		}
	}
	if best == 0 {
		return Answer{}, 0, ErrNoEliminations
	}
	s, _ := snap.Slot(best)
	return Answer{Slot: s.Number, Occupant: s.Occupant}, bestCount, nil
}

// LongestDuration returns the occupant with the longest time in the ring.
// Eliminated slots use elimination minus entry; still-active slots use asOf
// minus entry, so callers pass the declared match-end timestamp once a
// winner exists. Ties go to the lower slot number. Returns ErrNoEntries when
// nobody has entered yet.
func LongestDuration(snap lifecycle.Snapshot, asOf time.Time) (Answer, time.Duration, error) {
	best := -1
	var bestDur time.Duration
	for i := range snap.Slots {
		s := snap.Slots[i]
		if !s.Entered() {
			continue
		}
		end := s.EliminationTime
		if !s.Eliminated() {
			end = asOf
		}
		d := end.Sub(s.EntryTime)
		if best < 0 || d > bestDur {
			best, bestDur = i, d
		}
	}
	if best < 0 {
		return Answer{}, 0, ErrNoEntries
	}
	return Answer{Slot: snap.Slots[best].Number, Occupant: snap.Slots[best].Occupant}, bestDur, nil
}

// FinalFour returns the four occupants left standing once every slot has
// entered and exactly four remain active, in slot order. Until that holds it
// returns ErrIncomplete; the host may instead freeze the set explicitly
// through a declared result.
func FinalFour(snap lifecycle.Snapshot) ([]string, error) {
	if !snap.AllEntered() {
		return nil, fmt.Errorf("%d slots empty: %w", emptyCount(snap), ErrIncomplete)
	}
	var members []string
	for i := range snap.Slots {
		if snap.Slots[i].Active() {
			members = append(members, snap.Slots[i].Occupant)
		}
	}
	if len(members) != 4 {
		return nil, fmt.Errorf("%d still active: %w", len(members), ErrIncomplete)
	}
	return members, nil
}

// OccupantOf returns the wrestler who entered through the numbered slot.
func OccupantOf(snap lifecycle.Snapshot, number int) (string, error) {
	s, ok := snap.Slot(number)
	if !ok {
		return "", fmt.Errorf("slot %d: %w", number, lifecycle.ErrBadSlot)
	}
	if !s.Entered() {
		return "", fmt.Errorf("slot %d: %w", number, ErrEmptySlot)
	}
	return s.Occupant, nil
}

func emptyCount(snap lifecycle.Snapshot) int {
	n := 0
	for i := range snap.Slots {
		if !snap.Slots[i].Entered() {
			n++
		}
	}
	return n
}
