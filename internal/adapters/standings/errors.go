package standings

import "errors"

// Sentinel kinds for standings errors.
var (
	ErrNotFound     = errors.New("participant not found")
	ErrInvalidLimit = errors.New("invalid standings limit")
)
