// Package registry keeps the rating record of every competitor.
//
// Competitors are created lazily by GetOrCreate and are never deleted.
// The persisted form is a JSON array of [id, competitor] pairs.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/okian/cardelo/internal/domain/elo"
	"github.com/okian/cardelo/internal/domain/model"
)

// Pair is one persisted registry entry. It encodes as a two element array.
type Pair struct {
	ID         string
	Competitor model.Competitor
}

// MarshalJSON encodes the pair as [id, competitor].
func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.ID, p.Competitor})
}

// UnmarshalJSON decodes [id, competitor].
func (p *Pair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("pair has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return fmt.Errorf("pair id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Competitor); err != nil {
		return fmt.Errorf("pair competitor: %w", err)
	}
	return nil
}

// Registry maps competitor ids to their rating records.
// It is not safe for concurrent use; callers serialize access.
type Registry struct {
	byID map[string]model.Competitor

	userKFactor      float64
	flashcardKFactor float64
	initialRating    float64
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byID:             make(map[string]model.Competitor),
		userKFactor:      DefaultUserKFactor,
		flashcardKFactor: DefaultFlashcardKFactor,
		initialRating:    DefaultInitialRating,
	}
	for _, opt := range opts {
		opt(r)
	}
	if elo.ValidateRating(r.initialRating) != nil {
		r.initialRating = DefaultInitialRating
	}
	return r
}

// GetOrCreate returns the competitor with id, creating it with the defaults
// for kind if it does not exist. An existing competitor is returned as is;
// kind is ignored on lookup.
func (r *Registry) GetOrCreate(id string, kind model.Kind) model.Competitor {
	if c, ok := r.byID[id]; ok {
		return c
	}
	k := r.flashcardKFactor
	if kind == model.KindUser {
		k = r.userKFactor
	}
	c := model.Competitor{ID: id, Rating: r.initialRating, KFactor: k}
	r.byID[id] = c
	return c
}

// Get looks up a competitor without creating it.
func (r *Registry) Get(id string) (model.Competitor, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// SetRating stores a new rating for an existing competitor.
func (r *Registry) SetRating(id string, rating float64) error {
	c, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrCompetitorNotFound, id)
	}
	if err := elo.ValidateRating(rating); err != nil {
		return err
	}
	c.Rating = rating
	r.byID[id] = c
	return nil
}

// Len returns the number of competitors.
func (r *Registry) Len() int { return len(r.byID) }

// All returns every competitor ordered by id.
func (r *Registry) All() []model.Competitor {
	out := make([]model.Competitor, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Flashcards returns every competitor except the user, ordered by id.
func (r *Registry) Flashcards() []model.Competitor {
	all := r.All()
	out := all[:0]
	for _, c := range all {
		if model.KindOf(c.ID) == model.KindFlashcard {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns the registry as ordered pairs.
func (r *Registry) Snapshot() []Pair {
	all := r.All()
	pairs := make([]Pair, len(all))
	for i, c := range all {
		pairs[i] = Pair{ID: c.ID, Competitor: c}
	}
	return pairs
}

// Restore replaces the registry contents with pairs. On error the registry
// is left empty.
func (r *Registry) Restore(pairs []Pair) error {
	byID := make(map[string]model.Competitor, len(pairs))
	r.byID = make(map[string]model.Competitor)
	for i, p := range pairs {
		if err := validatePair(p); err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrCorruptState, i, err)
		}
		if _, dup := byID[p.ID]; dup {
			return fmt.Errorf("%w: entry %d: duplicate id %q", ErrCorruptState, i, p.ID)
		}
		byID[p.ID] = p.Competitor
	}
	r.byID = byID
	return nil
}

// Reset drops every competitor.
func (r *Registry) Reset() {
	r.byID = make(map[string]model.Competitor)
}

// MarshalJSON encodes the registry as [[id, competitor], ...] ordered by id.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}

// UnmarshalJSON replaces the registry contents. Malformed input yields
// ErrCorruptState and an empty registry.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var pairs []Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		r.Reset()
		return fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	return r.Restore(pairs)
}

func validatePair(p Pair) error {
	if p.ID == "" {
		return fmt.Errorf("empty id")
	}
	if p.ID != p.Competitor.ID {
		return fmt.Errorf("key %q does not match competitor id %q", p.ID, p.Competitor.ID)
	}
	if err := elo.ValidateRating(p.Competitor.Rating); err != nil {
		return err
	}
	return elo.ValidateKFactor(p.Competitor.KFactor)
}
