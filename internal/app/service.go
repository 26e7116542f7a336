// Package service provides the rating core: it owns the competitor registry,
// the answer history and the flashcard rank index, and persists them through
// a key-value store.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cardelo/internal/adapters/repository"
	"github.com/okian/cardelo/internal/adapters/storage"
	"github.com/okian/cardelo/internal/domain/dedupe"
	"github.com/okian/cardelo/internal/domain/elo"
	"github.com/okian/cardelo/internal/domain/history"
	"github.com/okian/cardelo/internal/domain/model"
	"github.com/okian/cardelo/internal/domain/registry"
	"github.com/okian/cardelo/pkg/logger"
	"github.com/okian/cardelo/pkg/metrics"
)

// Defaults not owned by a domain package.
const (
	defaultSampleFraction  = 0.1
	defaultDedupeSize      = 50000
	defaultImportQueueSize = 1024
)

// Subscriber is notified after every applied answer.
type Subscriber func(ctx context.Context, o model.Outcome)

// Service holds the rating state of one learner. All methods are safe for
// concurrent use; state changes are serialized.
type Service struct {
	mu sync.Mutex

	// Core components
	registry *registry.Registry
	history  *history.Log
	index    repository.Index // nil when the rank index is disabled
	store    storage.Store
	deduper  dedupe.Deduper

	// Configuration
	userKFactor      float64
	flashcardKFactor float64
	initialRating    float64
	historyCapacity  int
	rankIndexEnabled bool
	sampleFraction   float64
	dedupeSize       int
	importQueueSize  int
	now              func() time.Time
	rng              *rand.Rand

	// Observers
	subMu       sync.RWMutex
	subscribers map[int]Subscriber
	nextSubID   int

	sessionID string
	logger    logger.Logger
}

// New constructs a Service with empty state. Call LoadFromStorage to read
// persisted state.
func New(opts ...Option) *Service {
	s := &Service{
		userKFactor:      registry.DefaultUserKFactor,
		flashcardKFactor: registry.DefaultFlashcardKFactor,
		initialRating:    registry.DefaultInitialRating,
		historyCapacity:  history.DefaultCapacity,
		rankIndexEnabled: true,
		sampleFraction:   defaultSampleFraction,
		dedupeSize:       defaultDedupeSize,
		importQueueSize:  defaultImportQueueSize,
		now:              time.Now,
		subscribers:      make(map[int]Subscriber),
		sessionID:        uuid.NewString(),
		logger:           logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = storage.NewMemoryStore()
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // card selection is not security sensitive
	}
	s.logger = s.logger.With(logger.String("session", s.sessionID))

	s.registry = registry.New(
		registry.WithUserKFactor(s.userKFactor),
		registry.WithFlashcardKFactor(s.flashcardKFactor),
		registry.WithInitialRating(s.initialRating),
	)
	s.history = history.New(history.WithCapacity(s.historyCapacity))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	if s.rankIndexEnabled {
		s.index = repository.NewTreapStore(context.Background())
	}

	return s
}

// SessionID identifies this Service instance in logs and stats.
func (s *Service) SessionID() string { return s.sessionID }

// LoadFromStorage replaces the in-memory state with the persisted slots.
// A slot that cannot be decoded is logged, removed from the store and
// treated as empty. Only store I/O failures are returned.
func (s *Service) LoadFromStorage(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadSlot(ctx, storage.KeyState, s.registry.UnmarshalJSON, s.registry.Reset); err != nil {
		return err
	}
	if err := s.loadSlot(ctx, storage.KeyHistory, s.history.UnmarshalJSON, s.history.Reset); err != nil {
		return err
	}
	s.rebuildIndex(ctx)
	s.publishSizes()

	if u, ok := s.registry.Get(model.UserID); ok {
		metrics.UpdateUserRating(u.Rating)
	}
	s.logger.Debug(ctx, "state loaded",
		logger.Int("competitors", s.registry.Len()),
		logger.Int("history", s.history.Len()),
	)
	return nil
}

func (s *Service) loadSlot(ctx context.Context, key string, decode func([]byte) error, reset func()) error {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		metrics.RecordStorageError("load", key)
		return fmt.Errorf("%w: load %s: %w", ErrStorage, key, err)
	}
	metrics.RecordStorageOp("load", key)
	if !ok {
		reset()
		return nil
	}

	if err := decode([]byte(raw)); err != nil {
		reset()
		metrics.RecordCorruptRecovery(key)
		s.logger.Warn(ctx, "discarding unreadable stored state",
			logger.String("slot", key),
			logger.Error(err),
		)
		if err := s.store.Remove(ctx, key); err != nil {
			metrics.RecordStorageError("remove", key)
			return fmt.Errorf("%w: remove %s: %w", ErrStorage, key, err)
		}
	}
	return nil
}

// SaveToStorage writes the registry and the history, each as a whole-value replace.
func (s *Service) SaveToStorage(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveSlot(ctx, storage.KeyState, s.registry); err != nil {
		return err
	}
	return s.saveSlot(ctx, storage.KeyHistory, s.history)
}

func (s *Service) saveSlot(ctx context.Context, key string, v json.Marshaler) error {
	data, err := v.MarshalJSON()
	if err != nil {
		metrics.RecordStorageError("save", key)
		return fmt.Errorf("%w: encode %s: %w", ErrStorage, key, err)
	}
	if err := s.store.Set(ctx, key, string(data)); err != nil {
		metrics.RecordStorageError("save", key)
		return fmt.Errorf("%w: save %s: %w", ErrStorage, key, err)
	}
	metrics.RecordStorageOp("save", key)
	return nil
}

// RegisterDeck makes sure every id exists as a flashcard and rebuilds the
// rank index. Blank ids are skipped. It returns the number of new flashcards.
func (s *Service) RegisterDeck(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if id == model.UserID {
			return 0, fmt.Errorf("%w: %q", ErrReservedID, id)
		}
	}

	created := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.registry.Get(id); !ok {
			created++
		}
		s.registry.GetOrCreate(id, model.KindFlashcard)
	}
	s.rebuildIndex(ctx)
	s.publishSizes()

	s.logger.Info(ctx, "deck registered",
		logger.Int("cards", len(ids)),
		logger.Int("created", created),
	)
	return created, nil
}

// ReportOutcome records the user's answer to a flashcard and updates both
// ratings. Missing competitors are created first.
func (s *Service) ReportOutcome(ctx context.Context, flashcardID string, isCorrect bool) (model.Outcome, error) {
	s.mu.Lock()
	out, err := s.report(ctx, flashcardID, isCorrect, s.now())
	s.mu.Unlock()
	if err != nil {
		return model.Outcome{}, err
	}

	s.notify(ctx, out)
	return out, nil
}

// report applies one answer. Callers hold s.mu.
func (s *Service) report(ctx context.Context, flashcardID string, isCorrect bool, at time.Time) (model.Outcome, error) {
	if flashcardID == "" {
		return model.Outcome{}, ErrEmptyFlashcardID
	}
	if flashcardID == model.UserID {
		return model.Outcome{}, fmt.Errorf("%w: %q", ErrReservedID, flashcardID)
	}

	user := s.registry.GetOrCreate(model.UserID, model.KindUser)
	card := s.registry.GetOrCreate(flashcardID, model.KindFlashcard)

	userAfter, cardAfter, err := elo.Update(user.Rating, card.Rating, elo.Score(isCorrect), user.KFactor, card.KFactor)
	if err != nil {
		metrics.RecordRatingError()
		s.logger.Error(ctx, "rating update rejected",
			logger.String("flashcardID", flashcardID),
			logger.Error(err),
		)
		return model.Outcome{}, fmt.Errorf("update ratings for %q: %w", flashcardID, err)
	}
	if err := s.registry.SetRating(model.UserID, userAfter); err != nil {
		return model.Outcome{}, err
	}
	if err := s.registry.SetRating(flashcardID, cardAfter); err != nil {
		return model.Outcome{}, err
	}

	position := -1
	if s.index != nil {
		position = s.index.Reposition(ctx, flashcardID, cardAfter)
	}

	rec := model.HistoryRecord{
		Timestamp:             at.UnixMilli(),
		UserRatingBefore:      user.Rating,
		UserRatingAfter:       userAfter,
		FlashcardRatingBefore: card.Rating,
		FlashcardRatingAfter:  cardAfter,
		FlashcardID:           flashcardID,
		IsCorrect:             isCorrect,
	}
	s.history.Append(rec)

	user.Rating = userAfter
	card.Rating = cardAfter

	metrics.RecordOutcome(isCorrect)
	metrics.RecordRatingChange(flashcardID, rec.UserRatingBefore, userAfter, rec.FlashcardRatingBefore, cardAfter)
	s.publishSizes()

	s.logger.Debug(ctx, "outcome recorded",
		logger.String("flashcardID", flashcardID),
		logger.Bool("correct", isCorrect),
		logger.Float64("userRating", userAfter),
		logger.Float64("flashcardRating", cardAfter),
		logger.Int("position", position),
	)

	return model.Outcome{User: user, Flashcard: card, Record: rec, Position: position}, nil
}

// GetCompetitor returns the competitor with id, creating it with the
// defaults for kind when it does not exist yet.
func (s *Service) GetCompetitor(ctx context.Context, id string, kind model.Kind) (model.Competitor, error) {
	if id == "" {
		return model.Competitor{}, ErrEmptyFlashcardID
	}
	if !kind.Valid() {
		return model.Competitor{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.registry.Get(id)
	c := s.registry.GetOrCreate(id, kind)
	if !existed {
		if s.index != nil && model.KindOf(id) == model.KindFlashcard {
			s.index.Reposition(ctx, id, c.Rating)
		}
		s.publishSizes()
	}
	return c, nil
}

// GetRank returns the number of flashcards rated strictly below rating.
func (s *Service) GetRank(ctx context.Context, rating float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return 0, ErrRankIndexDisabled
	}
	return s.index.Rank(ctx, rating), nil
}

// SampleWindow returns the flashcard ids in the window around rating.
func (s *Service) SampleWindow(ctx context.Context, rating, fraction float64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return nil, ErrRankIndexDisabled
	}
	return s.index.SampleWindow(ctx, rating, fraction)
}

// GetProbability returns the chance that a flashcard rated flashcardRating
// beats the user, i.e. that the user answers it wrong.
func (s *Service) GetProbability(flashcardRating float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return elo.Probability(flashcardRating, s.userRating())
}

// UserRating returns the user's current rating, or the initial rating when
// the user has not answered yet.
func (s *Service) UserRating() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userRating()
}

// userRating returns the user's rating without creating the user.
func (s *Service) userRating() float64 {
	if u, ok := s.registry.Get(model.UserID); ok {
		return u.Rating
	}
	return s.initialRating
}

// NextCard picks a flashcard for the user. With the rank index it samples
// uniformly from the window around the user's rating, otherwise from the
// whole deck.
func (s *Service) NextCard(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []string
	if s.index != nil {
		ids, err := s.index.SampleWindow(ctx, s.userRating(), s.sampleFraction)
		if err != nil {
			return "", err
		}
		candidates = ids
	} else {
		for _, c := range s.registry.Flashcards() {
			candidates = append(candidates, c.ID)
		}
	}

	if len(candidates) == 0 {
		return "", ErrEmptyDeck
	}
	return candidates[s.rng.Intn(len(candidates))], nil
}

// History returns the answer history, oldest first.
func (s *Service) History() []model.HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Records()
}

// Competitors returns every competitor ordered by id.
func (s *Service) Competitors() []model.Competitor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.All()
}

// Leaderboard returns flashcards in ascending rating order starting at offset.
func (s *Service) Leaderboard(ctx context.Context, offset, limit int) ([]repository.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return nil, ErrRankIndexDisabled
	}
	return s.index.Entries(ctx, offset, limit)
}

// Subscribe registers fn to be called after every applied answer and
// returns a function that removes it.
func (s *Service) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
}

// notify calls subscribers in registration order. It must not hold s.mu so
// subscribers may call back into the Service.
func (s *Service) notify(ctx context.Context, o model.Outcome) {
	s.subMu.RLock()
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Subscriber, len(ids))
	for i, id := range ids {
		fns[i] = s.subscribers[id]
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(ctx, o)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"session":          s.sessionID,
		"competitors":      s.registry.Len(),
		"flashcards":       len(s.registry.Flashcards()),
		"historyLength":    s.history.Len(),
		"historyCapacity":  s.history.Capacity(),
		"rankIndexEnabled": s.index != nil,
		"userRating":       s.userRating(),
		"importedKeys":     s.deduper.Size(),
	}
	if s.index != nil {
		stats["rankIndexSize"] = s.index.Count(context.Background())
	}
	return stats
}

// rebuildIndex reloads the rank index from the registry. Callers hold s.mu.
func (s *Service) rebuildIndex(ctx context.Context) {
	if s.index != nil {
		s.index.Rebuild(ctx, s.registry.Flashcards())
	}
}

// publishSizes updates the size gauges. Callers hold s.mu.
func (s *Service) publishSizes() {
	metrics.UpdateCompetitorsTotal(s.registry.Len())
	metrics.UpdateHistoryLength(s.history.Len())
}
