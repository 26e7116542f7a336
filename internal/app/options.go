package service

import (
	"math/rand"
	"time"

	"github.com/okian/cardelo/internal/adapters/storage"
	"github.com/okian/cardelo/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the key-value store the state is loaded from and saved to.
func WithStore(st storage.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithUserKFactor sets the k-factor given to a newly created user.
func WithUserKFactor(k float64) Option {
	return func(s *Service) {
		s.userKFactor = k
	}
}

// WithFlashcardKFactor sets the k-factor given to newly created flashcards.
func WithFlashcardKFactor(k float64) Option {
	return func(s *Service) {
		s.flashcardKFactor = k
	}
}

// WithInitialRating sets the rating of newly created competitors.
func WithInitialRating(r float64) Option {
	return func(s *Service) {
		s.initialRating = r
	}
}

// WithHistoryCapacity bounds the answer history.
func WithHistoryCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyCapacity = n
		}
	}
}

// WithRankIndex turns the flashcard rank index on or off.
func WithRankIndex(enabled bool) Option {
	return func(s *Service) {
		s.rankIndexEnabled = enabled
	}
}

// WithSampleFraction sets the window fraction NextCard samples from.
// Values outside (0, 1] are ignored.
func WithSampleFraction(f float64) Option {
	return func(s *Service) {
		if f > 0 && f <= 1 {
			s.sampleFraction = f
		}
	}
}

// WithClock replaces the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand sets the random source used by NextCard.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithDedupeSize sets how many imported answer keys are remembered.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		s.dedupeSize = n
	}
}

// WithImportQueueSize sets the capacity of the answer import queue.
func WithImportQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.importQueueSize = n
		}
	}
}
