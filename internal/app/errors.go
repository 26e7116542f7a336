package service

import "errors"

// Sentinel error kinds returned by the Service.
var (
	ErrEmptyFlashcardID  = errors.New("flashcard id must not be empty")
	ErrReservedID        = errors.New("id is reserved for the user")
	ErrInvalidKind       = errors.New("unknown competitor kind")
	ErrRankIndexDisabled = errors.New("rank index is disabled")
	ErrEmptyDeck         = errors.New("deck has no flashcards")
	ErrStorage           = errors.New("storage failed")
)
