// Package lifecycle is the source-of-truth state for the 30 numbered entrant
// slots of one rumble division.
//
// The store keeps raw facts only (occupant, entry time, elimination time,
// eliminator); everything downstream is recomputed from snapshots, never
// cached here. All mutations are host-confirmed single-writer operations; the
// orchestrator serializes calls against one Rumble.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/okian/rumble/internal/domain/model"
)

// SlotCount is the number of numbered entry positions in a rumble.
const SlotCount = 30

// EliminatorOutside is the sentinel eliminator number for unassisted
// eliminations (over the top rope alone, outside interference, injury).
const EliminatorOutside = 0

// Slot is one numbered entry position tracked through entry and elimination.
// Zero times mean "not yet".
type Slot struct {
	Number          int       `json:"number"`
	Occupant        string    `json:"occupant,omitempty"`
	EntryTime       time.Time `json:"entry_time,omitzero"`
	EliminationTime time.Time `json:"elimination_time,omitzero"`
	EliminatedBy    int       `json:"eliminated_by,omitempty"`
}

// Entered reports whether a wrestler has come through this slot.
func (s Slot) Entered() bool { return !s.EntryTime.IsZero() }

// Eliminated reports whether the slot's occupant has been eliminated.
func (s Slot) Eliminated() bool { return !s.EliminationTime.IsZero() }

// Active reports whether the occupant is in the ring: entered, not eliminated.
func (s Slot) Active() bool { return s.Entered() && !s.Eliminated() }

// Rumble tracks one division's slots. Not safe for concurrent mutation;
// callers hold the per-party lock.
type Rumble struct {
	division model.Division
	slots    [SlotCount]Slot
}

// New creates a rumble with all slots empty, numbered 1..SlotCount.
func New(division model.Division) *Rumble {
	r := &Rumble{division: division}
	for i := range r.slots {
		r.slots[i].Number = i + 1
	}
	return r
}

// Division returns the division this rumble belongs to.
func (r *Rumble) Division() model.Division { return r.division }

func (r *Rumble) slot(number int) (*Slot, error) {
	if number < 1 || number > SlotCount {
		return nil, fmt.Errorf("slot %d: %w", number, ErrBadSlot)
	}
	return &r.slots[number-1], nil
}

// ConfirmEntry records wrestler entering through slot number at ts.
func (r *Rumble) ConfirmEntry(number int, wrestler string, ts time.Time) error {
	s, err := r.slot(number)
	if err != nil {
		return err
	}
	if wrestler == "" {
		return fmt.Errorf("slot %d: %w", number, ErrBadWrestler)
	}
	if ts.IsZero() {
		return fmt.Errorf("slot %d: %w", number, ErrBadTimestamp)
	}
	if s.Entered() {
		return fmt.Errorf("slot %d held by %q: %w", number, s.Occupant, ErrSlotOccupied)
	}
	// Only an active occupancy blocks: an eliminated wrestler may legally
	// re-enter through a later slot (returns, run-ins).
	for i := range r.slots {
		if r.slots[i].Active() && r.slots[i].Occupant == wrestler {
			return fmt.Errorf("%q already in slot %d: %w", wrestler, r.slots[i].Number, ErrDuplicateOccupant)
		}
	}
	s.Occupant = wrestler
	s.EntryTime = ts
	return nil
}

// ConfirmElimination records slot number being eliminated at ts, credited to
// eliminator (a slot number, or EliminatorOutside for unassisted).
//
// The eliminator must be entered and must not itself be eliminated at or
// before ts; a later elimination time is tolerated so hosts can correct
// facts out of order.
func (r *Rumble) ConfirmElimination(number, eliminator int, ts time.Time) error {
	s, err := r.slot(number)
	if err != nil {
		return err
	}
	if !s.Active() {
		return fmt.Errorf("slot %d: %w", number, ErrNotActive)
	}
	if ts.IsZero() || !ts.After(s.EntryTime) {
		return fmt.Errorf("slot %d: elimination must follow entry: %w", number, ErrBadTimestamp)
	}
	if eliminator != EliminatorOutside {
		e, err := r.slot(eliminator)
		if err != nil {
			return err
		}
		if eliminator == number {
			return fmt.Errorf("slot %d cannot eliminate itself: %w", number, ErrEliminatorNotActive)
		}
		if !e.Entered() {
			return fmt.Errorf("eliminator slot %d: %w", eliminator, ErrEliminatorNotActive)
		}
		if e.Eliminated() && !e.EliminationTime.After(ts) {
			return fmt.Errorf("eliminator slot %d already out: %w", eliminator, ErrEliminatorNotActive)
		}
	}
	s.EliminationTime = ts
	s.EliminatedBy = eliminator
	return nil
}

// ResetEntry undoes a confirmed entry, clearing the slot back to empty.
// The slot's own elimination must be reset first, and no other slot may
// still credit this one as its eliminator.
func (r *Rumble) ResetEntry(number int) error {
	s, err := r.slot(number)
	if err != nil {
		return err
	}
	if !s.Entered() {
		return fmt.Errorf("slot %d: %w", number, ErrNotEntered)
	}
	if s.Eliminated() {
		return fmt.Errorf("slot %d still has an elimination recorded: %w", number, ErrHasDependents)
	}
	for i := range r.slots {
		if r.slots[i].Eliminated() && r.slots[i].EliminatedBy == number {
			return fmt.Errorf("slot %d credited with eliminating slot %d: %w", number, r.slots[i].Number, ErrHasDependents)
		}
	}
	s.Occupant = ""
	s.EntryTime = time.Time{}
	return nil
}

// ResetElimination undoes a confirmed elimination, returning the slot to
// active.
func (r *Rumble) ResetElimination(number int) error {
	s, err := r.slot(number)
	if err != nil {
		return err
	}
	if !s.Eliminated() {
		return fmt.Errorf("slot %d: %w", number, ErrNotEliminated)
	}
	s.EliminationTime = time.Time{}
	s.EliminatedBy = 0
	return nil
}

// Snapshot returns a consistent copy of the current state. Readers never see
// torn writes because the array is copied under the caller's lock.
func (r *Rumble) Snapshot() Snapshot {
	return Snapshot{Division: r.division, Slots: r.slots}
}

// Snapshot is an immutable copy of one rumble's slots.
type Snapshot struct {
	Division model.Division  `json:"division"`
	Slots    [SlotCount]Slot `json:"slots"`
}

// Slot returns the slot with the given number.
func (s Snapshot) Slot(number int) (Slot, bool) {
	if number < 1 || number > SlotCount {
		return Slot{}, false
	}
	return s.Slots[number-1], true
}

// ActiveCount returns how many slots are currently active.
func (s Snapshot) ActiveCount() int {
	n := 0
	for i := range s.Slots {
		if s.Slots[i].Active() {
			n++
		}
	}
	return n
}

// AllEntered reports whether every slot has been filled.
func (s Snapshot) AllEntered() bool {
	for i := range s.Slots {
		if !s.Slots[i].Entered() {
			return false
		}
	}
	return true
}

// Entered returns the set of wrestlers that have come through any slot.
func (s Snapshot) Entered() map[string]bool {
	out := make(map[string]bool)
	for i := range s.Slots {
		if s.Slots[i].Entered() {
			out[s.Slots[i].Occupant] = true
		}
	}
	return out
}
