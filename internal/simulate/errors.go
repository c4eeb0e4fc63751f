package simulate

import "errors"

// Error constants.
var (
	ErrInvalidConfig    = errors.New("invalid simulation config")
	ErrInconsistent     = errors.New("rankings inconsistent with judgments")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
