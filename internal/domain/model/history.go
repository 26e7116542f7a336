package model

import "time"

// HistoryRecord captures a single answered card and the ratings around it.
type HistoryRecord struct {
	Timestamp             int64   `json:"timestamp"` // epoch milliseconds
	UserRatingBefore      float64 `json:"userRatingBefore"`
	UserRatingAfter       float64 `json:"userRatingAfter"`
	FlashcardRatingBefore float64 `json:"flashcardRatingBefore"`
	FlashcardRatingAfter  float64 `json:"flashcardRatingAfter"`
	FlashcardID           string  `json:"flashcardId"`
	IsCorrect             bool    `json:"isCorrect"`
}

// Time returns the record timestamp as a time.Time.
func (r HistoryRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Outcome is the result of reporting one answer.
type Outcome struct {
	User      Competitor    `json:"user"`
	Flashcard Competitor    `json:"flashcard"`
	Record    HistoryRecord `json:"record"`
	// Position is the flashcard's 0-based place in the rank index, or -1 without one.
	Position int `json:"position"`
}
