package graphcache

import "errors"

// Sentinel kinds for graph cache errors.
var (
	ErrBuildGraph = errors.New("build preference graph failed")
)
