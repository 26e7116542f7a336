package elo

import "errors"

// Sentinel errors for the rating engine. Use errors.Is to check.
var (
	ErrInvalidRating  = errors.New("elo: invalid rating")
	ErrInvalidScore   = errors.New("elo: invalid score")
	ErrInvalidKFactor = errors.New("elo: invalid k-factor")
)
