package derive

import "errors"

// Sentinel kinds for derivation outcomes that are not yet determined.
var (
	ErrNoEliminations = errors.New("no eliminations recorded")
	ErrNoEntries      = errors.New("no entries recorded")
	ErrIncomplete     = errors.New("final four not yet determined")
	ErrEmptySlot      = errors.New("slot has no occupant")
)
