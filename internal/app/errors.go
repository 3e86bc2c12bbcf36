package service

import "errors"

// Sentinel kinds for orchestrator errors.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrPartyNotFound   = errors.New("party not found")
	ErrUnknownDivision = errors.New("unknown division")
	ErrUnknownWrestler = errors.New("wrestler not on the roster")
	ErrUnknownMatch    = errors.New("match not on the card")
	ErrUnknownProp     = errors.New("unknown chaos prop")
	ErrBadSetup        = errors.New("invalid party setup")
	ErrBadFact         = errors.New("invalid fact")
)
