package repository

import "errors"

// Sentinel kinds for rank index errors.
var (
	ErrNotFound        = errors.New("flashcard not found in rank index")
	ErrInvalidFraction = errors.New("sample fraction must be in (0, 1]")
	ErrInvalidRange    = errors.New("invalid rank index range")
)
