package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrInvalidEdge     = errors.New("invalid preference edge")
	ErrInvalidPolarity = errors.New("invalid polarity")
	ErrClosed          = errors.New("store closed")
)
