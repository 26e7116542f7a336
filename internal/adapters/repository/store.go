// Package repository maintains the rank index: every flashcard ordered by
// ascending rating, with rank and window queries for difficulty-targeted
// sampling.
package repository

import (
	"context"

	"github.com/okian/cardelo/internal/domain/model"
)

// Entry represents one row of the rank index.
type Entry struct {
	// Rank is the 0-based position in ascending rating order.
	Rank        int     `json:"rank"`
	FlashcardID string  `json:"flashcardId"`
	Rating      float64 `json:"rating"`
}

// Index provides ordered access to flashcard ratings.
type Index interface {
	// Rebuild replaces the whole index with competitors. O(n log n).
	Rebuild(ctx context.Context, competitors []model.Competitor)

	// Reposition moves id to the place matching rating, inserting it if it is
	// new. Returns the new 0-based position.
	Reposition(ctx context.Context, id string, rating float64) int

	// Remove drops id. Returns false if it was not indexed.
	Remove(ctx context.Context, id string) bool

	// Rank returns the number of flashcards rated strictly below rating.
	Rank(ctx context.Context, rating float64) int

	// SampleWindow returns the ids around Rank(rating) covering about
	// 2*fraction of the deck, shifted inward at either end of the deck.
	SampleWindow(ctx context.Context, rating, fraction float64) ([]string, error)

	// Position returns the 0-based position of id.
	// Returns ErrNotFound if id is not indexed.
	Position(ctx context.Context, id string) (int, error)

	// Entries returns up to limit rows starting at offset.
	Entries(ctx context.Context, offset, limit int) ([]Entry, error)

	// IDs returns every indexed id in ascending rating order.
	IDs(ctx context.Context) []string

	// Count returns the number of indexed flashcards.
	Count(ctx context.Context) int
}
