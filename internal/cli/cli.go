// Package cli implements the cardelo command line: it wires configuration,
// logging, storage and the rating service, runs one subcommand and persists
// the state it changed.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/okian/cardelo/internal/adapters/storage"
	service "github.com/okian/cardelo/internal/app"
	"github.com/okian/cardelo/internal/config"
	"github.com/okian/cardelo/pkg/logger"
	"github.com/okian/cardelo/pkg/metrics"
)

const usageWidth = 94

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// env carries what a command needs.
type env struct {
	cfg    *config.Config
	svc    *service.Service
	log    logger.Logger
	stdout io.Writer
	stderr io.Writer
}

// command runs with its own arguments. It returns the value to print (nil
// prints nothing) and whether persisted state changed.
type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, e *env, args []string) (result any, mutated bool, err error)
}

var commands = map[string]command{
	"deck":        {"deck [path]", "register the flashcards named in a deck-config.json", runDeck},
	"report":      {"report <flashcard-id> <correct|incorrect>", "record an answer and update both ratings", runReport},
	"competitor":  {"competitor <id>", "show a competitor, creating it if needed", runCompetitor},
	"rank":        {"rank [rating]", "count flashcards rated below rating (default: user rating)", runRank},
	"sample":      {"sample [-fraction f] [rating]", "list flashcards in the window around rating", runSample},
	"probability": {"probability <flashcard-rating>", "chance that a flashcard beats the user", runProbability},
	"next":        {"next", "pick the next flashcard to show", runNext},
	"history":     {"history [-n N]", "show the most recent answers", runHistory},
	"leaderboard": {"leaderboard [-offset o] [-limit l]", "list flashcards by ascending rating", runLeaderboard},
	"import":      {"import <answers.jsonl>", "replay a JSON-lines answer log; repeated answers are applied once", runImport},
	"simulate":    {"simulate [-cards n] [-answers n] [-batch n] [-skill r] [-fraction f] [-seed s] [-output file]", "run a synthetic learner against a fresh deck", runSimulate},
	"stats":       {"stats [-metrics]", "show state counters, or metrics in the Prometheus text format", runStats},
}

// Run executes args (without the program name) and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(stdout)
		if len(args) == 0 {
			return ExitUsage
		}
		return ExitOK
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "%v: %q\n\n", ErrUnknownCommand, name)
		printUsage(stderr)
		return ExitUsage
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return ExitError
	}
	if err := logger.InitWith(stderr, cfg.LogFormat); err != nil {
		fmt.Fprintf(stderr, "failed to initialize logging: %v\n", err)
		return ExitError
	}
	log := logger.Get().Named("cli")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(metricsOptions(cfg)...)

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.String("path", cfg.StorePath), logger.Error(err))
		return ExitError
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn(ctx, "failed to close store", logger.Error(err))
		}
	}()

	svc := service.New(
		service.WithLogger(logger.Get()),
		service.WithStore(store),
		service.WithUserKFactor(cfg.UserKFactor),
		service.WithFlashcardKFactor(cfg.FlashcardKFactor),
		service.WithInitialRating(cfg.InitialRating),
		service.WithHistoryCapacity(cfg.HistoryCapacity),
		service.WithRankIndex(cfg.RankIndexEnabled),
		service.WithSampleFraction(cfg.SampleFraction),
	)
	if err := svc.LoadFromStorage(ctx); err != nil {
		log.Error(ctx, "failed to load state", logger.Error(err))
		return ExitError
	}

	e := &env{cfg: cfg, svc: svc, log: log, stdout: stdout, stderr: stderr}
	result, mutated, err := cmd.run(ctx, e, args[1:])
	if err != nil {
		if errors.Is(err, ErrUsage) || errors.Is(err, flag.ErrHelp) {
			if !errors.Is(err, flag.ErrHelp) && err.Error() != ErrUsage.Error() {
				fmt.Fprintln(stderr, err)
			}
			fmt.Fprintf(stderr, "usage: cardelo %s\n", cmd.usage)
			return ExitUsage
		}
		log.Error(ctx, "command failed", logger.String("command", name), logger.Error(err))
		return ExitError
	}

	if mutated {
		if err := svc.SaveToStorage(ctx); err != nil {
			log.Error(ctx, "failed to save state", logger.Error(err))
			return ExitError
		}
	}

	if result != nil {
		if err := writeJSON(stdout, result); err != nil {
			log.Error(ctx, "failed to write output", logger.Error(err))
			return ExitError
		}
	}
	return ExitOK
}

func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithConstLabels(cfg.MetricsLabels),
		metrics.WithHistogramBuckets(cfg.MetricsLatencyBuckets),
		metrics.WithRatingDeltaBuckets(metrics.RatingDeltaBuckets(cfg.UserKFactor, cfg.FlashcardKFactor)),
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StorePath == "" {
		return storage.NewMemoryStore(), nil
	}
	return storage.OpenSQLite(ctx, cfg.StorePath)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("cardelo - Elo ratings for flashcard study\n\nUsage:\n  cardelo <command> [arguments]\n\nCommands:\n")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(&b, "  %-*s %s\n", usageWidth, c.usage, c.summary)
	}
	fmt.Fprintf(&b, "  %-*s %s\n", usageWidth, "help", "show this help")
	b.WriteString(`
Configuration (lowest to highest precedence):
  defaults, YAML file named by CARDELO_CONFIG, .env file (CARDELO_ENV_FILE,
  default .env), CARDELO_* environment variables such as CARDELO_STORE_PATH.
`)
	_, _ = io.WriteString(w, b.String())
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// parseFlags parses args into fs and marks failures as usage errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return nil
}
