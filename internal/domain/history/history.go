// Package history keeps a bounded, append-only log of answered cards.
package history

import (
	"encoding/json"
	"fmt"

	"github.com/okian/cardelo/internal/domain/model"
)

// DefaultCapacity is the number of records kept when no option is given.
const DefaultCapacity = 100

// Option applies a configuration option to the Log.
type Option func(*Log)

// WithCapacity bounds the log at n records. Non-positive values are ignored.
func WithCapacity(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// Log is an ordered record sequence, oldest first, never longer than its
// capacity. When full, appending evicts the oldest record.
type Log struct {
	records  []model.HistoryRecord
	capacity int
}

// New creates an empty log.
func New(opts ...Option) *Log {
	l := &Log{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(l)
	}
	l.records = make([]model.HistoryRecord, 0, l.capacity)
	return l
}

// Append adds rec to the end, evicting from the front to stay within capacity.
func (l *Log) Append(rec model.HistoryRecord) {
	if len(l.records) == l.capacity {
		copy(l.records, l.records[1:])
		l.records = l.records[:len(l.records)-1]
	}
	l.records = append(l.records, rec)
}

// Len returns the number of records.
func (l *Log) Len() int { return len(l.records) }

// Capacity returns the maximum number of records kept.
func (l *Log) Capacity() int { return l.capacity }

// Records returns a copy of all records, oldest first.
func (l *Log) Records() []model.HistoryRecord {
	out := make([]model.HistoryRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Last returns up to n of the newest records, oldest first.
func (l *Log) Last(n int) []model.HistoryRecord {
	if n <= 0 {
		return []model.HistoryRecord{}
	}
	if n > len(l.records) {
		n = len(l.records)
	}
	out := make([]model.HistoryRecord, n)
	copy(out, l.records[len(l.records)-n:])
	return out
}

// Replace swaps in recs, keeping only the newest capacity records.
func (l *Log) Replace(recs []model.HistoryRecord) {
	if len(recs) > l.capacity {
		recs = recs[len(recs)-l.capacity:]
	}
	l.records = make([]model.HistoryRecord, len(recs), l.capacity)
	copy(l.records, recs)
}

// Reset drops every record.
func (l *Log) Reset() {
	l.records = l.records[:0]
}

// MarshalJSON encodes the log as a chronological array.
func (l *Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Records())
}

// UnmarshalJSON replaces the log with the decoded array. Malformed input
// yields ErrCorruptHistory and an empty log.
func (l *Log) UnmarshalJSON(data []byte) error {
	var recs []model.HistoryRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		l.Reset()
		return fmt.Errorf("%w: %w", ErrCorruptHistory, err)
	}
	l.Replace(recs)
	return nil
}
