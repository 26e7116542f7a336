// Package dedupe tracks answer keys that have already been applied, so a
// replayed answer log does not move ratings twice.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper records seen answer keys to ensure at-most-once application.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key so the answer may be applied again. Used when
	// an answer was recorded but could not be queued or applied.
	Unrecord(ctx context.Context, key string)

	// Size returns the number of remembered keys.
	Size() int
}

// inMemoryDeduper keeps keys in a map plus a ring of insertion order.
// When bounded and full, the oldest key is forgotten first.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]int // key -> slot in order
	order   []string       // ring buffer; "" marks a free or unrecorded slot
	head    int            // next slot to write
	maxSize int            // 0 or negative = unbounded
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]int)
	if d.maxSize > 0 {
		d.order = make([]string, d.maxSize)
	}
	return d
}

// SeenAndRecord implements Deduper.SeenAndRecord.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize <= 0 {
		d.seen[key] = -1
		return false
	}
	if old := d.order[d.head]; old != "" {
		delete(d.seen, old)
	}
	d.order[d.head] = key
	d.seen[key] = d.head
	d.head = (d.head + 1) % d.maxSize
	return false
}

// Unrecord implements Deduper.Unrecord.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.seen[key]
	if !ok {
		return
	}
	delete(d.seen, key)
	if slot >= 0 {
		d.order[slot] = ""
	}
}

// Size implements Deduper.Size.
func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
