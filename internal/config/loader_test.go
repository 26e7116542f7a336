package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/cardelo/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CARDELO_STORE_PATH", "/tmp/other.db")
			_ = os.Setenv("CARDELO_USER_K_FACTOR", "16")
			_ = os.Setenv("CARDELO_HISTORY_CAPACITY", "50")
			_ = os.Setenv("CARDELO_RANK_INDEX_ENABLED", "false")
			_ = os.Setenv("CARDELO_SAMPLE_FRACTION", "0.25")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.StorePath, convey.ShouldEqual, "/tmp/other.db")
				convey.So(cfg.UserKFactor, convey.ShouldEqual, 16)
				convey.So(cfg.HistoryCapacity, convey.ShouldEqual, 50)
				convey.So(cfg.RankIndexEnabled, convey.ShouldBeFalse)
				convey.So(cfg.SampleFraction, convey.ShouldEqual, 0.25)
				convey.So(cfg.FlashcardKFactor, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When loading config with a YAML file and env overrides", func() {
			path := writeTemp(t, "cardelo.yaml", `
log_level: debug
flashcard_k_factor: 40
initial_rating: 1200
history_capacity: 20
`)
			_ = os.Setenv(config.EnvConfig, path)
			_ = os.Setenv("CARDELO_HISTORY_CAPACITY", "30")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")       // From file
				convey.So(cfg.FlashcardKFactor, convey.ShouldEqual, 40)    // From file
				convey.So(cfg.InitialRating, convey.ShouldEqual, 1200)     // From file
				convey.So(cfg.HistoryCapacity, convey.ShouldEqual, 30)     // Overridden by env
				convey.So(cfg.StorePath, convey.ShouldEqual, "cardelo.db") // From defaults
			})
		})

		convey.Convey("When a YAML file configures metrics", func() {
			path := writeTemp(t, "metrics.yaml", `
metrics_enabled: false
metrics_namespace: flashcards
metrics_labels:
  deck: spanish
metrics_latency_buckets: [0.1, 1, 10]
`)
			_ = os.Setenv(config.EnvConfig, path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then the metrics settings are read", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "flashcards")
				convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "elo")
				convey.So(cfg.MetricsLabels, convey.ShouldResemble, map[string]string{"deck": "spanish"})
				convey.So(cfg.MetricsLatencyBuckets, convey.ShouldResemble, []float64{0.1, 1, 10})
			})
		})

		convey.Convey("When loading config with a .env file", func() {
			path := writeTemp(t, "test.env", "CARDELO_LOG_FORMAT=json\nCARDELO_SAMPLE_FRACTION=0.2\nOTHER_APP_SETTING=ignored\n")
			_ = os.Setenv(config.EnvEnvFile, path)
			_ = os.Setenv("CARDELO_SAMPLE_FRACTION", "0.3")

			cfg, err := config.Load(ctx)

			convey.Convey("Then its values apply below the process env", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.SampleFraction, convey.ShouldEqual, 0.3)
			})

			convey.Convey("Then the process env is not modified", func() {
				_, set := os.LookupEnv("CARDELO_LOG_FORMAT")
				convey.So(set, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When an explicit .env file is missing", func() {
			_ = os.Setenv(config.EnvEnvFile, filepath.Join(t.TempDir(), "missing.env"))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv(config.EnvConfig, writeTemp(t, "bad.yaml", `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv(config.EnvConfig, "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the loaded values fail validation", func() {
			_ = os.Setenv("CARDELO_SAMPLE_FRACTION", "2")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "sample_fraction")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// writeTemp creates a file with content in a per-test temporary directory.
func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// clearConfigEnvVars clears all config-related environment variables.
func clearConfigEnvVars() {
	envVars := []string{
		"CARDELO_CONFIG",
		"CARDELO_ENV_FILE",
		"CARDELO_LOG_LEVEL",
		"CARDELO_LOG_FORMAT",
		"CARDELO_STORE_PATH",
		"CARDELO_DECK_PATH",
		"CARDELO_USER_K_FACTOR",
		"CARDELO_FLASHCARD_K_FACTOR",
		"CARDELO_INITIAL_RATING",
		"CARDELO_HISTORY_CAPACITY",
		"CARDELO_RANK_INDEX_ENABLED",
		"CARDELO_SAMPLE_FRACTION",
		"CARDELO_METRICS_ENABLED",
		"CARDELO_METRICS_NAMESPACE",
		"CARDELO_METRICS_SUBSYSTEM",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}
