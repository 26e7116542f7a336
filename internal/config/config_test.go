package config_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/cardelo/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.StorePath, convey.ShouldEqual, "cardelo.db")
			convey.So(cfg.UserKFactor, convey.ShouldEqual, 24)
			convey.So(cfg.FlashcardKFactor, convey.ShouldEqual, 32)
			convey.So(cfg.InitialRating, convey.ShouldEqual, 1500)
			convey.So(cfg.HistoryCapacity, convey.ShouldEqual, 100)
			convey.So(cfg.RankIndexEnabled, convey.ShouldBeTrue)
			convey.So(cfg.SampleFraction, convey.ShouldEqual, 0.1)
			convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "cardelo")
			convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "elo")
			convey.So(cfg.MetricsLabels, convey.ShouldBeEmpty)
			convey.So(cfg.MetricsLatencyBuckets, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one invalid field", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"unknown log level", func(c *config.Config) { c.LogLevel = "loud" }},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }},
			{"zero user k-factor", func(c *config.Config) { c.UserKFactor = 0 }},
			{"negative flashcard k-factor", func(c *config.Config) { c.FlashcardKFactor = -1 }},
			{"NaN initial rating", func(c *config.Config) { c.InitialRating = math.NaN() }},
			{"zero history capacity", func(c *config.Config) { c.HistoryCapacity = 0 }},
			{"zero sample fraction", func(c *config.Config) { c.SampleFraction = 0 }},
			{"sample fraction above one", func(c *config.Config) { c.SampleFraction = 1.5 }},
			{"empty metrics namespace", func(c *config.Config) { c.MetricsNamespace = "" }},
			{"dashed metrics subsystem", func(c *config.Config) { c.MetricsSubsystem = "rank-index" }},
			{"reserved metrics label", func(c *config.Config) { c.MetricsLabels = map[string]string{"__deck": "x"} }},
			{"unsorted latency buckets", func(c *config.Config) { c.MetricsLatencyBuckets = []float64{1, 0.5} }},
		}

		for _, tc := range cases {
			convey.Convey("When the config has "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)

				convey.Convey("Then validation fails with ErrInvalidConfig", func() {
					convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})

	convey.Convey("Given an empty metrics subsystem and valid labels", t, func() {
		cfg := config.New()
		cfg.MetricsSubsystem = ""
		cfg.MetricsLabels = map[string]string{"deck": "spanish"}
		cfg.MetricsLatencyBuckets = []float64{0.1, 1, 10}

		convey.Convey("Then it validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
