package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrCategoryLocked  = errors.New("category already resolved")
	ErrAlreadyResolved = errors.New("category resolved with a different result")
	ErrNotResolved     = errors.New("category not resolved")
	ErrBadPrediction   = errors.New("invalid prediction")
	ErrBadResult       = errors.New("invalid result")
	ErrMissingWeight   = errors.New("missing weight for category kind")
	ErrBadWeight       = errors.New("invalid weight")
)
