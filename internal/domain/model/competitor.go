// Package model contains domain models passed between layers.
package model

// Kind distinguishes the two sides of every match.
type Kind string

const (
	// KindUser is the single human learner.
	KindUser Kind = "user"
	// KindFlashcard is one card image.
	KindFlashcard Kind = "flashcard"
)

// UserID is the fixed identifier of the user competitor.
const UserID = "user"

// Competitor is an entity holding an Elo rating.
// KFactor is fixed when the competitor is created.
type Competitor struct {
	ID      string  `json:"id"`
	Rating  float64 `json:"rating"`
	KFactor float64 `json:"kFactor"`
}

// KindOf reports the kind of the competitor with the given id.
func KindOf(id string) Kind {
	if id == UserID {
		return KindUser
	}
	return KindFlashcard
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindUser || k == KindFlashcard
}
