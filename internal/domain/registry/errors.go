package registry

import "errors"

// Sentinel errors for the competitor registry.
var (
	ErrCompetitorNotFound = errors.New("registry: competitor not found")
	ErrCorruptState       = errors.New("registry: corrupt persisted state")
)
