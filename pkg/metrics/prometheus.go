// Package metrics provides Prometheus metrics for the cardelo rating core.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Default rating-delta buckets: an answer moves a rating by at most k (24 or 32 by default).
var defaultDeltaBuckets = []float64{1, 2, 4, 8, 12, 16, 20, 24, 28, 32, 48, 64}

// Manager manages all Prometheus metrics for the rating core.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	deltaBuckets     []float64
	enabled          bool
	constLabels      map[string]string
	registry         *prometheus.Registry

	// Rating metrics
	outcomes        *prometheus.CounterVec
	userRating      prometheus.Gauge
	flashcardRating *prometheus.GaugeVec
	ratingDelta     *prometheus.HistogramVec
	ratingErrors    prometheus.Counter

	// State size metrics
	competitorsTotal prometheus.Gauge
	historyLength    prometheus.Gauge
	rankIndexSize    prometheus.Gauge

	// Rank index metrics
	rankIndexUpdateLatency prometheus.Histogram
	rankIndexQueryLatency  prometheus.Histogram

	// Storage metrics
	storageOps        *prometheus.CounterVec
	storageErrors     *prometheus.CounterVec
	corruptRecoveries *prometheus.CounterVec

	// Answer import metrics
	queueDepth      prometheus.Gauge
	importedAnswers *prometheus.CounterVec
	applyLatency    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager. Without WithPrometheusRegistry
// the manager gets a fresh private registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cardelo",
		subsystem:        "elo",
		histogramBuckets: prometheus.DefBuckets,
		deltaBuckets:     defaultDeltaBuckets,
		enabled:          true,
		constLabels:      make(map[string]string),
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.outcomes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "outcomes_total",
		Help:        "Total number of reported answers by correctness",
		ConstLabels: labels,
	}, []string{"result"})

	m.userRating = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "user_rating",
		Help:        "Current Elo rating of the user",
		ConstLabels: labels,
	})

	m.flashcardRating = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "flashcard_rating",
		Help:        "Current Elo rating of each flashcard that has been answered",
		ConstLabels: labels,
	}, []string{"flashcard"})

	m.ratingDelta = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rating_delta_points",
		Help:        "Absolute rating change per answer",
		Buckets:     m.deltaBuckets,
		ConstLabels: labels,
	}, []string{"kind"})

	m.ratingErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rating_errors_total",
		Help:        "Rating updates rejected because of invalid input",
		ConstLabels: labels,
	})

	m.competitorsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "competitors_total",
		Help:        "Number of competitors in the registry, user included",
		ConstLabels: labels,
	})

	m.historyLength = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "history_length",
		Help:        "Number of records in the history log",
		ConstLabels: labels,
	})

	m.rankIndexSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rank_index_size",
		Help:        "Number of flashcards in the rank index",
		ConstLabels: labels,
	})

	m.rankIndexUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rank_index_update_latency_milliseconds",
		Help:        "Latency of rank index rebuild and reposition operations in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.rankIndexQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rank_index_query_latency_milliseconds",
		Help:        "Latency of rank index rank and window queries in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.storageOps = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "storage_operations_total",
		Help:        "Storage load and save operations by slot",
		ConstLabels: labels,
	}, []string{"op", "slot"})

	m.storageErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "storage_errors_total",
		Help:        "Storage operations that failed by slot",
		ConstLabels: labels,
	}, []string{"op", "slot"})

	m.corruptRecoveries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "corrupt_state_recoveries_total",
		Help:        "Persisted slots discarded because they could not be decoded",
		ConstLabels: labels,
	}, []string{"slot"})

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "answer_queue_depth",
		Help:        "Answers waiting in the import queue",
		ConstLabels: labels,
	})

	m.importedAnswers = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "imported_answers_total",
		Help:        "Imported answers by status: applied, duplicate, rejected, dropped",
		ConstLabels: labels,
	}, []string{"status"})

	m.applyLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "answer_apply_latency_milliseconds",
		Help:        "Time taken by the import worker to apply one answer in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})
}

// Registry returns the registry the manager's collectors live on.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// RecordOutcome counts a reported answer.
func (m *Manager) RecordOutcome(correct bool) {
	if !m.enabled {
		return
	}
	result := "incorrect"
	if correct {
		result = "correct"
	}
	m.outcomes.WithLabelValues(result).Inc()
}

// RecordRatingChange publishes the new ratings and the size of the change.
func (m *Manager) RecordRatingChange(flashcardID string, userBefore, userAfter, cardBefore, cardAfter float64) {
	if !m.enabled {
		return
	}
	m.userRating.Set(userAfter)
	m.flashcardRating.WithLabelValues(flashcardID).Set(cardAfter)
	m.ratingDelta.WithLabelValues("user").Observe(abs(userAfter - userBefore))
	m.ratingDelta.WithLabelValues("flashcard").Observe(abs(cardAfter - cardBefore))
}

// RecordRatingError counts a rejected rating update.
func (m *Manager) RecordRatingError() {
	if !m.enabled {
		return
	}
	m.ratingErrors.Inc()
}

// UpdateUserRating sets the user rating gauge.
func (m *Manager) UpdateUserRating(rating float64) {
	if !m.enabled {
		return
	}
	m.userRating.Set(rating)
}

// UpdateCompetitorsTotal sets the registry size gauge.
func (m *Manager) UpdateCompetitorsTotal(count int) {
	if !m.enabled {
		return
	}
	m.competitorsTotal.Set(float64(count))
}

// UpdateHistoryLength sets the history length gauge.
func (m *Manager) UpdateHistoryLength(length int) {
	if !m.enabled {
		return
	}
	m.historyLength.Set(float64(length))
}

// UpdateRankIndexSize sets the rank index size gauge.
func (m *Manager) UpdateRankIndexSize(size int) {
	if !m.enabled {
		return
	}
	m.rankIndexSize.Set(float64(size))
}

// RecordRankIndexUpdateLatency records rank index write latency.
func (m *Manager) RecordRankIndexUpdateLatency(latencyMs float64) {
	if !m.enabled {
		return
	}
	m.rankIndexUpdateLatency.Observe(latencyMs)
}

// RecordRankIndexQueryLatency records rank index read latency.
func (m *Manager) RecordRankIndexQueryLatency(latencyMs float64) {
	if !m.enabled {
		return
	}
	m.rankIndexQueryLatency.Observe(latencyMs)
}

// RecordStorageOp counts a storage load or save of slot.
func (m *Manager) RecordStorageOp(op, slot string) {
	if !m.enabled {
		return
	}
	m.storageOps.WithLabelValues(op, slot).Inc()
}

// RecordStorageError counts a failed storage load or save of slot.
func (m *Manager) RecordStorageError(op, slot string) {
	if !m.enabled {
		return
	}
	m.storageErrors.WithLabelValues(op, slot).Inc()
}

// RecordCorruptRecovery counts a discarded slot.
func (m *Manager) RecordCorruptRecovery(slot string) {
	if !m.enabled {
		return
	}
	m.corruptRecoveries.WithLabelValues(slot).Inc()
}

// UpdateQueueDepth sets the import queue depth gauge.
func (m *Manager) UpdateQueueDepth(depth int) {
	if !m.enabled {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RecordImportedAnswer counts an imported answer by status.
func (m *Manager) RecordImportedAnswer(status string) {
	if !m.enabled {
		return
	}
	m.importedAnswers.WithLabelValues(status).Inc()
}

// RecordApplyLatency records how long the import worker spent on one answer.
func (m *Manager) RecordApplyLatency(latencyMs float64) {
	if !m.enabled {
		return
	}
	m.applyLatency.Observe(latencyMs)
}

// WriteText writes every metric family in the Prometheus text exposition format.
func (m *Manager) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Snapshot returns the current value of every counter and gauge, keyed by
// metric name and labels in the text format (name{label="value"}).
// Histograms contribute their sample count under name_count.
func (m *Manager) Snapshot() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := labelString(metric.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[mf.GetName()+labels] = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[mf.GetName()+labels] = metric.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[mf.GetName()+"_count"+labels] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

func labelString(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s=%q", p.GetName(), p.GetValue())
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Package-level helpers operate on the global manager.

// RecordOutcome counts a reported answer.
func RecordOutcome(correct bool) { globalManager.RecordOutcome(correct) }

// RecordRatingChange publishes the new ratings and the size of the change.
func RecordRatingChange(flashcardID string, userBefore, userAfter, cardBefore, cardAfter float64) {
	globalManager.RecordRatingChange(flashcardID, userBefore, userAfter, cardBefore, cardAfter)
}

// RecordRatingError counts a rejected rating update.
func RecordRatingError() { globalManager.RecordRatingError() }

// UpdateUserRating sets the user rating gauge.
func UpdateUserRating(rating float64) { globalManager.UpdateUserRating(rating) }

// UpdateCompetitorsTotal sets the registry size gauge.
func UpdateCompetitorsTotal(count int) { globalManager.UpdateCompetitorsTotal(count) }

// UpdateHistoryLength sets the history length gauge.
func UpdateHistoryLength(length int) { globalManager.UpdateHistoryLength(length) }

// UpdateRankIndexSize sets the rank index size gauge.
func UpdateRankIndexSize(size int) { globalManager.UpdateRankIndexSize(size) }

// RecordRankIndexUpdateLatency records rank index write latency.
func RecordRankIndexUpdateLatency(latencyMs float64) {
	globalManager.RecordRankIndexUpdateLatency(latencyMs)
}

// RecordRankIndexQueryLatency records rank index read latency.
func RecordRankIndexQueryLatency(latencyMs float64) {
	globalManager.RecordRankIndexQueryLatency(latencyMs)
}

// RecordStorageOp counts a storage load or save of slot.
func RecordStorageOp(op, slot string) { globalManager.RecordStorageOp(op, slot) }

// RecordStorageError counts a failed storage load or save of slot.
func RecordStorageError(op, slot string) { globalManager.RecordStorageError(op, slot) }

// RecordCorruptRecovery counts a discarded slot.
func RecordCorruptRecovery(slot string) { globalManager.RecordCorruptRecovery(slot) }

// UpdateQueueDepth sets the import queue depth gauge.
func UpdateQueueDepth(depth int) { globalManager.UpdateQueueDepth(depth) }

// RecordImportedAnswer counts an imported answer by status.
func RecordImportedAnswer(status string) { globalManager.RecordImportedAnswer(status) }

// RecordApplyLatency records how long the import worker spent on one answer.
func RecordApplyLatency(latencyMs float64) { globalManager.RecordApplyLatency(latencyMs) }

// WriteText renders the global registry in the Prometheus text format.
func WriteText(w io.Writer) error { return globalManager.WriteText(w) }

// Snapshot returns the current counter and gauge values of the global registry.
func Snapshot() (map[string]float64, error) { return globalManager.Snapshot() }

// Configure replaces the global manager with one built from opts on a fresh
// registry. Call it once at startup, before any metric is recorded.
func Configure(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	m := NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
	globalManager = m
	return m
}

// RatingDeltaBuckets returns doubling buckets from 1 up to twice the largest
// k-factor, which bounds the change of a single answer.
func RatingDeltaBuckets(kFactors ...float64) []float64 {
	top := 0.0
	for _, k := range kFactors {
		top = max(top, 2*k)
	}
	buckets := []float64{1}
	for buckets[len(buckets)-1] < top {
		buckets = append(buckets, buckets[len(buckets)-1]*2)
	}
	return buckets
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
