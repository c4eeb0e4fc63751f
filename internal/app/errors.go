package service

import "errors"

// Sentinel kinds for coordinator errors.
var (
	// ErrCycleRejected is returned when a judgment or placement would make
	// the preference graph cyclic. The graph is left unchanged.
	ErrCycleRejected = errors.New("preference would create a cycle")

	ErrSelfPreference   = errors.New("item cannot be compared with itself")
	ErrInvalidPolarity  = errors.New("invalid polarity")
	ErrInvalidWinner    = errors.New("winner must be one of the compared items")
	ErrInvalidPlacement = errors.New("invalid placement")

	// ErrPersist wraps failures of the preference store.
	ErrPersist = errors.New("persist preferences failed")
)
