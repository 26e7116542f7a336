package metrics

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it should get a private registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Registry(), ShouldNotBeNil)
				So(manager.Registry(), ShouldNotEqual, GetRegistry())
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRatingDeltaBuckets([]float64{5, 10}),
				WithMetricsEnabled(true),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.RecordOutcome(true)

			Convey("Then metric names should carry the namespace and labels", func() {
				So(manager.Registry(), ShouldEqual, registry)
				var buf bytes.Buffer
				So(manager.WriteText(&buf), ShouldBeNil)
				So(buf.String(), ShouldContainSubstring, "test_namespace_test_subsystem_outcomes_total")
				So(buf.String(), ShouldContainSubstring, `env="test"`)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a fresh manager", t, func() {
		m := NewManager()

		Convey("When outcomes are recorded", func() {
			m.RecordOutcome(true)
			m.RecordOutcome(true)
			m.RecordOutcome(false)

			Convey("Then they are counted by result", func() {
				So(testutil.ToFloat64(m.outcomes.WithLabelValues("correct")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.outcomes.WithLabelValues("incorrect")), ShouldEqual, 1)
			})
		})

		Convey("When a rating change is recorded", func() {
			m.RecordRatingChange("cat.png", 1500, 1512, 1500, 1484)

			Convey("Then the gauges hold the new ratings", func() {
				So(testutil.ToFloat64(m.userRating), ShouldEqual, 1512)
				So(testutil.ToFloat64(m.flashcardRating.WithLabelValues("cat.png")), ShouldEqual, 1484)
				So(testutil.CollectAndCount(m.ratingDelta), ShouldEqual, 2)
			})
		})

		Convey("When sizes and storage events are recorded", func() {
			m.UpdateCompetitorsTotal(4)
			m.UpdateHistoryLength(3)
			m.UpdateRankIndexSize(3)
			m.RecordStorageOp("load", "eloState")
			m.RecordStorageError("save", "eloHistory")
			m.RecordCorruptRecovery("eloState")
			m.RecordRatingError()
			m.RecordRankIndexUpdateLatency(0.2)
			m.RecordRankIndexQueryLatency(0.1)
			m.UpdateQueueDepth(7)
			m.RecordImportedAnswer("applied")
			m.RecordImportedAnswer("duplicate")
			m.RecordImportedAnswer("applied")
			m.RecordApplyLatency(0.3)

			Convey("Then each collector reflects it", func() {
				So(testutil.ToFloat64(m.competitorsTotal), ShouldEqual, 4)
				So(testutil.ToFloat64(m.historyLength), ShouldEqual, 3)
				So(testutil.ToFloat64(m.rankIndexSize), ShouldEqual, 3)
				So(testutil.ToFloat64(m.storageOps.WithLabelValues("load", "eloState")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.storageErrors.WithLabelValues("save", "eloHistory")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.corruptRecoveries.WithLabelValues("eloState")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.ratingErrors), ShouldEqual, 1)
				So(testutil.ToFloat64(m.queueDepth), ShouldEqual, 7)
				So(testutil.ToFloat64(m.importedAnswers.WithLabelValues("applied")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.importedAnswers.WithLabelValues("duplicate")), ShouldEqual, 1)
			})
		})
	})
}

func TestMetricsDisabled(t *testing.T) {
	Convey("Given a disabled manager", t, func() {
		m := NewManager(WithMetricsEnabled(false))

		Convey("When updates arrive", func() {
			m.RecordOutcome(true)
			m.UpdateUserRating(1600)

			Convey("Then nothing changes", func() {
				So(testutil.ToFloat64(m.outcomes.WithLabelValues("correct")), ShouldEqual, 0)
				So(testutil.ToFloat64(m.userRating), ShouldEqual, 0)
			})
		})
	})
}

func TestSnapshot(t *testing.T) {
	Convey("Given a manager with some activity", t, func() {
		m := NewManager()
		m.RecordOutcome(true)
		m.RecordOutcome(true)
		m.UpdateUserRating(1524)
		m.RecordRatingChange("cat.png", 1512, 1524, 1484, 1470)

		snap, err := m.Snapshot()
		So(err, ShouldBeNil)

		Convey("Then counters and gauges are keyed by name and labels", func() {
			So(snap[`cardelo_elo_outcomes_total{result="correct"}`], ShouldEqual, 2)
			So(snap["cardelo_elo_user_rating"], ShouldEqual, 1524)
			So(snap[`cardelo_elo_flashcard_rating{flashcard="cat.png"}`], ShouldEqual, 1470)
		})

		Convey("Then histograms report their sample count", func() {
			So(snap[`cardelo_elo_rating_delta_points_count{kind="user"}`], ShouldEqual, 1)
		})

		Convey("Then vectors without samples are absent", func() {
			_, ok := snap[`cardelo_elo_outcomes_total{result="incorrect"}`]
			So(ok, ShouldBeFalse)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given a configured global manager", t, func() {
		prevManager, prevRegistry := globalManager, customRegistry
		defer func() { globalManager, customRegistry = prevManager, prevRegistry }()

		m := Configure(
			WithNamespace("flashcards"),
			WithSubsystem("study"),
			WithConstLabels(map[string]string{"deck": "spanish"}),
			WithRatingDeltaBuckets(RatingDeltaBuckets(24, 32)),
			WithHistogramBuckets([]float64{0.1, 1, 10}),
		)
		RecordOutcome(true)
		RecordRankIndexQueryLatency(0.5)

		Convey("Then the package helpers record on the new registry", func() {
			So(m, ShouldEqual, globalManager)
			So(GetRegistry(), ShouldEqual, m.Registry())
			So(GetRegistry(), ShouldNotEqual, prevRegistry)

			snap, err := Snapshot()
			So(err, ShouldBeNil)
			So(snap[`flashcards_study_outcomes_total{deck="spanish",result="correct"}`], ShouldEqual, 1)
		})

		Convey("Then the latency buckets apply", func() {
			var buf bytes.Buffer
			So(WriteText(&buf), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, `flashcards_study_rank_index_query_latency`)
			So(buf.String(), ShouldContainSubstring, `le="10"`)
		})
	})

	Convey("Given a disabled configuration", t, func() {
		prevManager, prevRegistry := globalManager, customRegistry
		defer func() { globalManager, customRegistry = prevManager, prevRegistry }()

		Configure(WithMetricsEnabled(false))
		RecordOutcome(true)

		Convey("Then updates are ignored", func() {
			snap, err := Snapshot()
			So(err, ShouldBeNil)
			_, ok := snap[`cardelo_elo_outcomes_total{result="correct"}`]
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRatingDeltaBuckets(t *testing.T) {
	Convey("Given the default k-factors", t, func() {
		Convey("Then buckets double up to twice the largest k", func() {
			So(RatingDeltaBuckets(24, 32), ShouldResemble, []float64{1, 2, 4, 8, 16, 32, 64})
		})
	})

	Convey("Given no k-factors", t, func() {
		So(RatingDeltaBuckets(), ShouldResemble, []float64{1})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Then the package helpers should not panic", func() {
			So(func() {
				RecordOutcome(false)
				RecordRatingChange("dog.png", 1500, 1488, 1500, 1516)
				RecordRatingError()
				UpdateUserRating(1488)
				UpdateCompetitorsTotal(2)
				UpdateHistoryLength(1)
				UpdateRankIndexSize(1)
				RecordRankIndexUpdateLatency(0)
				RecordRankIndexQueryLatency(0)
				RecordStorageOp("save", "eloState")
				RecordStorageError("load", "eloState")
				RecordCorruptRecovery("eloHistory")
				UpdateQueueDepth(0)
				RecordImportedAnswer("rejected")
				RecordApplyLatency(0)
			}, ShouldNotPanic)
		})

		Convey("Then the text exposition lists the global collectors", func() {
			var buf bytes.Buffer
			So(WriteText(&buf), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "cardelo_elo_user_rating")
		})
	})
}
