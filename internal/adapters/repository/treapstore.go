package repository

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/cardelo/internal/domain/model"
	"github.com/okian/cardelo/pkg/metrics"
)

// Treap-based, in-memory Index implementation.
//
// Ordering: rating ASC, then flashcard id ASC (deterministic).
// Every node tracks its subtree size, so rank and positional lookups are
// O(log n) expected. Priorities are a seeded hash of the id, which keeps the
// tree balanced without a random source and makes its shape reproducible.

// treap node
type node struct {
	id     string
	rating float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) sorts before (bRating, bID).
func less(aRating float64, aID string, bRating float64, bID string) bool {
	if aRating != bRating {
		return aRating < bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, rating float64, prio uint64) *node {
	if n == nil {
		return &node{id: id, rating: rating, prio: prio, size: 1}
	}
	if less(rating, id, n.rating, n.id) {
		n.left = insert(n.left, id, rating, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, rating, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating float64) *node {
	if n == nil {
		return nil
	}
	if rating == n.rating && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	} else if less(rating, id, n.rating, n.id) {
		n.left = deleteNode(n.left, id, rating)
	} else {
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// countBelow returns the number of nodes rated strictly below rating.
func countBelow(n *node, rating float64) int {
	count := 0
	for n != nil {
		if n.rating < rating {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// positionOf returns the number of nodes sorting before (rating, id).
func positionOf(n *node, id string, rating float64) int {
	pos := 0
	for n != nil {
		if less(n.rating, n.id, rating, id) {
			pos += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return pos
}

// collectRange appends the nodes at positions [lo, hi) in order. base is the
// position of the leftmost node of n's subtree.
func collectRange(n *node, base, lo, hi int, out *[]*node) {
	if n == nil || lo >= hi {
		return
	}
	idx := base + nsize(n.left)
	if lo < idx {
		collectRange(n.left, base, lo, hi, out)
	}
	if lo <= idx && idx < hi {
		*out = append(*out, n)
	}
	if hi > idx+1 {
		collectRange(n.right, idx+1, lo, hi, out)
	}
}

// TreapStore is the default Index.
type TreapStore struct {
	mu             sync.RWMutex
	root           *node
	byID           map[string]float64
	seed           uint64
	metricsEnabled bool
}

var _ Index = (*TreapStore)(nil)

// NewTreapStore constructs an empty treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:           make(map[string]float64),
		metricsEnabled: true,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.reportSize()
	return s
}

func (s *TreapStore) priority(id string) uint64 {
	d := xxhash.NewWithSeed(s.seed)
	_, _ = d.WriteString(id)
	return d.Sum64()
}

// Rebuild implements Index.Rebuild. The user competitor is never indexed.
func (s *TreapStore) Rebuild(ctx context.Context, competitors []model.Competitor) {
	defer s.observeUpdate(time.Now())

	s.mu.Lock()
	s.root = nil
	s.byID = make(map[string]float64, len(competitors))
	for _, c := range competitors {
		if model.KindOf(c.ID) != model.KindFlashcard {
			continue
		}
		if old, ok := s.byID[c.ID]; ok {
			s.root = deleteNode(s.root, c.ID, old)
		}
		s.byID[c.ID] = c.Rating
		s.root = insert(s.root, c.ID, c.Rating, s.priority(c.ID))
	}
	s.mu.Unlock()

	s.reportSize()
}

// Reposition implements Index.Reposition in O(log n) expected time.
func (s *TreapStore) Reposition(ctx context.Context, id string, rating float64) int {
	defer s.observeUpdate(time.Now())

	s.mu.Lock()
	old, existed := s.byID[id]
	if existed {
		s.root = deleteNode(s.root, id, old)
	}
	s.byID[id] = rating
	s.root = insert(s.root, id, rating, s.priority(id))
	pos := positionOf(s.root, id, rating)
	s.mu.Unlock()

	if !existed {
		s.reportSize()
	}
	return pos
}

// Remove implements Index.Remove.
func (s *TreapStore) Remove(ctx context.Context, id string) bool {
	defer s.observeUpdate(time.Now())

	s.mu.Lock()
	old, ok := s.byID[id]
	if ok {
		s.root = deleteNode(s.root, id, old)
		delete(s.byID, id)
	}
	s.mu.Unlock()

	if ok {
		s.reportSize()
	}
	return ok
}

// Rank implements Index.Rank in O(log n) expected time.
func (s *TreapStore) Rank(ctx context.Context, rating float64) int {
	defer s.observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	return countBelow(s.root, rating)
}

// SampleWindow implements Index.SampleWindow.
//
// With n flashcards and r = Rank(rating) the window is
// [floor(r - n*f), ceil(r + n*f)) clamped to [0, n]. When r falls in the
// bottom f of the deck the window becomes the bottom 2f, and when it falls
// in the top f it becomes the top 2f, so the window never degenerates at
// the edges.
func (s *TreapStore) SampleWindow(ctx context.Context, rating, fraction float64) ([]string, error) {
	if math.IsNaN(fraction) || fraction <= 0 || fraction > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFraction, fraction)
	}
	defer s.observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := nsize(s.root)
	if n == 0 {
		return []string{}, nil
	}
	start, end := windowBounds(countBelow(s.root, rating), n, fraction)

	nodes := make([]*node, 0, end-start)
	collectRange(s.root, 0, start, end, &nodes)
	ids := make([]string, len(nodes))
	for i, nd := range nodes {
		ids[i] = nd.id
	}
	return ids, nil
}

// windowBounds computes the [start, end) slice of a deck of size n for a
// rank and fraction.
func windowBounds(rank, n int, fraction float64) (int, int) {
	r := float64(rank)
	span := float64(n) * fraction

	start := max(0, int(math.Floor(r-span)))
	end := min(n, int(math.Ceil(r+span)))

	if r < span {
		end = min(n, int(math.Ceil(span*2)))
	}
	if r > float64(n)*(1-fraction) {
		start = max(0, int(math.Floor(float64(n)*(1-fraction*2))))
	}
	if start > end {
		start = end
	}
	return start, end
}

// Position implements Index.Position.
func (s *TreapStore) Position(ctx context.Context, id string) (int, error) {
	defer s.observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	rating, ok := s.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return positionOf(s.root, id, rating), nil
}

// Entries implements Index.Entries.
func (s *TreapStore) Entries(ctx context.Context, offset, limit int) ([]Entry, error) {
	if offset < 0 || limit < 1 {
		return nil, fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidRange, offset, limit)
	}
	defer s.observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	end := min(nsize(s.root), offset+limit)
	if offset >= end {
		return []Entry{}, nil
	}
	nodes := make([]*node, 0, end-offset)
	collectRange(s.root, 0, offset, end, &nodes)

	out := make([]Entry, len(nodes))
	for i, nd := range nodes {
		out[i] = Entry{Rank: offset + i, FlashcardID: nd.id, Rating: nd.rating}
	}
	return out, nil
}

// IDs implements Index.IDs.
func (s *TreapStore) IDs(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*node, 0, nsize(s.root))
	collectRange(s.root, 0, 0, nsize(s.root), &nodes)
	ids := make([]string, len(nodes))
	for i, nd := range nodes {
		ids[i] = nd.id
	}
	return ids
}

// Count returns the number of indexed flashcards.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *TreapStore) observeUpdate(start time.Time) {
	if s.metricsEnabled {
		metrics.RecordRankIndexUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}
}

func (s *TreapStore) observeQuery(start time.Time) {
	if s.metricsEnabled {
		metrics.RecordRankIndexQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}
}

func (s *TreapStore) reportSize() {
	if !s.metricsEnabled {
		return
	}
	s.mu.RLock()
	n := len(s.byID)
	s.mu.RUnlock()
	metrics.UpdateRankIndexSize(n)
}
