package lifecycle

import "errors"

// Sentinel kinds for lifecycle precondition violations. Every rejected
// operation leaves the rumble unchanged and wraps one of these so callers
// can errors.Is and surface the specific reason to the host.
var (
	ErrBadSlot             = errors.New("slot number out of range")
	ErrBadWrestler         = errors.New("missing wrestler")
	ErrBadTimestamp        = errors.New("invalid timestamp")
	ErrSlotOccupied        = errors.New("slot already occupied")
	ErrDuplicateOccupant   = errors.New("wrestler already occupies an active slot")
	ErrNotActive           = errors.New("slot not active")
	ErrNotEntered          = errors.New("slot not entered")
	ErrNotEliminated       = errors.New("slot not eliminated")
	ErrHasDependents       = errors.New("slot has dependent eliminations")
	ErrEliminatorNotActive = errors.New("eliminator not active at elimination time")
)
