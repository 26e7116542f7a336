package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/cardelo/internal/adapters/deck"
	service "github.com/okian/cardelo/internal/app"
	"github.com/okian/cardelo/internal/domain/model"
	"github.com/okian/cardelo/pkg/logger"
	"github.com/okian/cardelo/pkg/metrics"
)

func runDeck(ctx context.Context, e *env, args []string) (any, bool, error) {
	if len(args) > 1 {
		return nil, false, ErrUsage
	}
	path := e.cfg.DeckPath
	if len(args) == 1 {
		path = args[0]
	}

	ids, err := deck.Load(ctx, path)
	if err != nil {
		return nil, false, err
	}
	added, err := e.svc.RegisterDeck(ctx, ids)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"deck": path, "cards": len(ids), "added": added}, added > 0, nil
}

func runReport(ctx context.Context, e *env, args []string) (any, bool, error) {
	if len(args) != 2 {
		return nil, false, ErrUsage
	}
	correct, err := parseCorrect(args[1])
	if err != nil {
		return nil, false, err
	}
	o, err := e.svc.ReportOutcome(ctx, args[0], correct)
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

func parseCorrect(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "correct", "right", "yes", "true", "1":
		return true, nil
	case "incorrect", "wrong", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: answer must be correct or incorrect, got %q", ErrUsage, s)
}

func runCompetitor(ctx context.Context, e *env, args []string) (any, bool, error) {
	if len(args) != 1 {
		return nil, false, ErrUsage
	}
	id := args[0]
	_, known := lookup(e.svc, id)
	c, err := e.svc.GetCompetitor(ctx, id, model.KindOf(id))
	if err != nil {
		return nil, false, err
	}
	return c, !known, nil
}

func lookup(svc *service.Service, id string) (model.Competitor, bool) {
	for _, c := range svc.Competitors() {
		if c.ID == id {
			return c, true
		}
	}
	return model.Competitor{}, false
}

// ratingArg returns the rating in args, or the user's rating when absent.
func ratingArg(e *env, args []string) (float64, error) {
	switch len(args) {
	case 0:
		return e.svc.UserRating(), nil
	case 1:
		r, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid rating %q", ErrUsage, args[0])
		}
		return r, nil
	}
	return 0, ErrUsage
}

func runRank(ctx context.Context, e *env, args []string) (any, bool, error) {
	rating, err := ratingArg(e, args)
	if err != nil {
		return nil, false, err
	}
	rank, err := e.svc.GetRank(ctx, rating)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"rating": rating, "rank": rank}, false, nil
}

func runSample(ctx context.Context, e *env, args []string) (any, bool, error) {
	fs := newFlagSet(e, "sample")
	fraction := fs.Float64("fraction", e.cfg.SampleFraction, "share of the deck on each side of the rating")
	if err := parseFlags(fs, args); err != nil {
		return nil, false, err
	}
	rating, err := ratingArg(e, fs.Args())
	if err != nil {
		return nil, false, err
	}
	ids, err := e.svc.SampleWindow(ctx, rating, *fraction)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"rating": rating, "fraction": *fraction, "flashcards": ids}, false, nil
}

func runProbability(_ context.Context, e *env, args []string) (any, bool, error) {
	if len(args) != 1 {
		return nil, false, ErrUsage
	}
	rating, err := ratingArg(e, args)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{
		"flashcardRating": rating,
		"userRating":      e.svc.UserRating(),
		"probability":     e.svc.GetProbability(rating),
	}, false, nil
}

func runNext(ctx context.Context, e *env, args []string) (any, bool, error) {
	if len(args) != 0 {
		return nil, false, ErrUsage
	}
	id, err := e.svc.NextCard(ctx)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"flashcardId": id}, false, nil
}

func runHistory(_ context.Context, e *env, args []string) (any, bool, error) {
	fs := newFlagSet(e, "history")
	n := fs.Int("n", 0, "show only the newest n records (0 shows all)")
	if err := parseFlags(fs, args); err != nil {
		return nil, false, err
	}
	if fs.NArg() != 0 || *n < 0 {
		return nil, false, ErrUsage
	}
	recs := e.svc.History()
	if *n > 0 && *n < len(recs) {
		recs = recs[len(recs)-*n:]
	}
	return recs, false, nil
}

func runLeaderboard(ctx context.Context, e *env, args []string) (any, bool, error) {
	fs := newFlagSet(e, "leaderboard")
	offset := fs.Int("offset", 0, "0-based position of the first entry")
	limit := fs.Int("limit", 20, "maximum number of entries")
	if err := parseFlags(fs, args); err != nil {
		return nil, false, err
	}
	if fs.NArg() != 0 {
		return nil, false, ErrUsage
	}
	entries, err := e.svc.Leaderboard(ctx, *offset, *limit)
	if err != nil {
		return nil, false, err
	}
	return entries, false, nil
}

func runImport(ctx context.Context, e *env, args []string) (any, bool, error) {
	if len(args) != 1 {
		return nil, false, ErrUsage
	}
	answers, err := readAnswers(args[0])
	if err != nil {
		return nil, false, err
	}
	summary, err := e.svc.ImportAnswers(ctx, answers)
	if err != nil {
		return nil, false, err
	}
	if summary.Rejected > 0 {
		e.log.Warn(ctx, "some answers were rejected", logger.Int("rejected", summary.Rejected))
	}
	return summary, summary.Applied > 0, nil
}

// readAnswers reads one JSON answer per line. Blank lines are skipped.
func readAnswers(path string) ([]model.Answer, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnswerLog, err)
	}
	defer func() { _ = f.Close() }()
	return decodeAnswers(f)
}

func decodeAnswers(r io.Reader) ([]model.Answer, error) {
	var answers []model.Answer
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var a model.Answer
		if err := json.Unmarshal([]byte(text), &a); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrAnswerLog, line, err)
		}
		answers = append(answers, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnswerLog, err)
	}
	return answers, nil
}

func encodeAnswers(w io.Writer, answers []model.Answer) error {
	enc := json.NewEncoder(w)
	for _, a := range answers {
		if err := enc.Encode(a); err != nil {
			return err
		}
	}
	return nil
}

func runStats(_ context.Context, e *env, args []string) (any, bool, error) {
	fs := newFlagSet(e, "stats")
	prom := fs.Bool("metrics", false, "print metrics in the Prometheus text format")
	if err := parseFlags(fs, args); err != nil {
		return nil, false, err
	}
	if fs.NArg() != 0 {
		return nil, false, ErrUsage
	}
	if *prom {
		return nil, false, metrics.WriteText(e.stdout)
	}
	stats := e.svc.GetStats()
	snapshot, err := metrics.Snapshot()
	if err != nil {
		return nil, false, err
	}
	stats["metrics"] = snapshot
	return stats, false, nil
}
