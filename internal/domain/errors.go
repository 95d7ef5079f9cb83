package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyActive     = errors.New("already active")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrConflict is returned by stores when a conditional update lost
	// against a concurrent writer (version mismatch).
	ErrConflict = errors.New("concurrent modification")

	ErrDestinationUnreachable = errors.New("destination unreachable")
	ErrStoreUnavailable       = errors.New("store unavailable")
)
