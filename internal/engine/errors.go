package engine

import "errors"

var (
	// ErrConflict indicates an existing file differs from the rendered one.
	ErrConflict = errors.New("conflict detected")

	// ErrValidation indicates a request that cannot be processed.
	ErrValidation = errors.New("validation failed")

	// ErrDrift indicates drift was detected.
	ErrDrift = errors.New("drift detected")
)
