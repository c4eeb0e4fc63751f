package preference

import "errors"

// Sentinel kinds for graph errors.
var (
	// ErrSelfPreference is returned when an item is asked to be placed
	// relative to itself.
	ErrSelfPreference = errors.New("item cannot be compared with itself")

	// ErrNoAnchor is returned by ForcePlacement when neither anchor is given.
	ErrNoAnchor = errors.New("placement needs an above or below anchor")

	// ErrConflictingAnchors is returned when the same item is given as both
	// the above and the below anchor.
	ErrConflictingAnchors = errors.New("above and below anchors must differ")
)
