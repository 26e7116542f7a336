package model

import (
	"strconv"
	"strings"
)

// Answer is one recorded response to a flashcard, as read from an answer
// log. ID identifies the answer for deduplication; Timestamp is epoch
// milliseconds and zero means "now".
type Answer struct {
	ID          string `json:"id"`
	FlashcardID string `json:"flashcardId"`
	IsCorrect   bool   `json:"isCorrect"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// Key returns the deduplication key of the answer. Answers without an ID are
// keyed by their content.
func (a Answer) Key() string {
	if a.ID != "" {
		return a.ID
	}
	var b strings.Builder
	b.WriteString(a.FlashcardID)
	b.WriteByte('|')
	if a.IsCorrect {
		b.WriteString("1")
	} else {
		b.WriteString("0")
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(a.Timestamp, 10))
	return b.String()
}
