// Package config defines process configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers file, .env and environment values on top of the defaults.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/okian/cardelo/internal/domain/history"
	"github.com/okian/cardelo/internal/domain/registry"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// StorePath is the SQLite file holding the persisted slots.
	// An empty path keeps state in memory for the life of the process.
	StorePath string `koanf:"store_path"`

	// DeckPath is the deck-config.json read by the deck command when no
	// path argument is given.
	DeckPath string `koanf:"deck_path"`

	// UserKFactor and FlashcardKFactor are assigned to newly created competitors.
	UserKFactor      float64 `koanf:"user_k_factor"`
	FlashcardKFactor float64 `koanf:"flashcard_k_factor"`

	// InitialRating is the rating of a newly created competitor.
	InitialRating float64 `koanf:"initial_rating"`

	// HistoryCapacity bounds the answer history.
	HistoryCapacity int `koanf:"history_capacity"`

	// RankIndexEnabled turns the flashcard rank index on.
	RankIndexEnabled bool `koanf:"rank_index_enabled"`

	// SampleFraction is the half-width of the next-card window as a share of the deck.
	SampleFraction float64 `koanf:"sample_fraction"`

	// MetricsEnabled turns metric updates on. Collectors stay registered either way.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLabels are constant labels added to every metric, e.g. the deck name.
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// MetricsLatencyBuckets are the rank index and import latency buckets in
	// milliseconds. Empty keeps the Prometheus defaults.
	MetricsLatencyBuckets []float64 `koanf:"metrics_latency_buckets"`
}

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		StorePath:        "cardelo.db",
		DeckPath:         "deck-config.json",
		UserKFactor:      registry.DefaultUserKFactor,
		FlashcardKFactor: registry.DefaultFlashcardKFactor,
		InitialRating:    registry.DefaultInitialRating,
		HistoryCapacity:  history.DefaultCapacity,
		RankIndexEnabled: true,
		SampleFraction:   0.1,
		MetricsEnabled:   true,
		MetricsNamespace: "cardelo",
		MetricsSubsystem: "elo",
	}
}

// Validate reports the first invalid field wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if !positive(c.UserKFactor) {
		return fmt.Errorf("%w: user_k_factor must be positive, got %v", ErrInvalidConfig, c.UserKFactor)
	}
	if !positive(c.FlashcardKFactor) {
		return fmt.Errorf("%w: flashcard_k_factor must be positive, got %v", ErrInvalidConfig, c.FlashcardKFactor)
	}
	if math.IsNaN(c.InitialRating) || math.IsInf(c.InitialRating, 0) {
		return fmt.Errorf("%w: initial_rating must be finite", ErrInvalidConfig)
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("%w: history_capacity must be at least 1, got %d", ErrInvalidConfig, c.HistoryCapacity)
	}
	if !(c.SampleFraction > 0 && c.SampleFraction <= 1) {
		return fmt.Errorf("%w: sample_fraction must be in (0, 1], got %v", ErrInvalidConfig, c.SampleFraction)
	}
	return c.validateMetrics()
}

func (c *Config) validateMetrics() error {
	if !metricName.MatchString(c.MetricsNamespace) {
		return fmt.Errorf("%w: metrics_namespace %q", ErrInvalidConfig, c.MetricsNamespace)
	}
	if c.MetricsSubsystem != "" && !metricName.MatchString(c.MetricsSubsystem) {
		return fmt.Errorf("%w: metrics_subsystem %q", ErrInvalidConfig, c.MetricsSubsystem)
	}
	for name := range c.MetricsLabels {
		if !metricName.MatchString(name) || strings.HasPrefix(name, "__") {
			return fmt.Errorf("%w: metrics_labels name %q", ErrInvalidConfig, name)
		}
	}
	for i, b := range c.MetricsLatencyBuckets {
		if math.IsNaN(b) || math.IsInf(b, 0) || (i > 0 && b <= c.MetricsLatencyBuckets[i-1]) {
			return fmt.Errorf("%w: metrics_latency_buckets must be finite and increasing", ErrInvalidConfig)
		}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
