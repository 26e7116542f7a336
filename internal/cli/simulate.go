package cli

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"

	"github.com/google/uuid"

	service "github.com/okian/cardelo/internal/app"
	"github.com/okian/cardelo/internal/domain/elo"
	"github.com/okian/cardelo/internal/domain/model"
	"github.com/okian/cardelo/pkg/logger"
)

// Simulation defaults.
const (
	defaultSimCards   = 50
	defaultSimAnswers = 2000
	defaultSimSkill   = 1500
	defaultSimBatch   = 20

	simDifficultyMin   = 1000.0
	simDifficultySpan  = 1000.0
	simStartMillis     = 1_700_000_000_000
	simAnswerInterval  = 5_000
	simHardestListSize = 5
)

// SimulationReport summarizes a synthetic study session.
type SimulationReport struct {
	Cards       int     `json:"cards"`
	Answers     int     `json:"answers"`
	Applied     int     `json:"applied"`
	Accuracy    float64 `json:"accuracy"`
	Skill       float64 `json:"skill"`
	UserRating  float64 `json:"userRating"`
	Correlation float64 `json:"correlation"`
	// Hardest lists the highest rated cards with their hidden difficulty.
	Hardest []SimulatedCard `json:"hardest"`
	Output  string          `json:"output,omitempty"`
}

// SimulatedCard pairs a card's learned rating with its hidden difficulty.
type SimulatedCard struct {
	FlashcardID string  `json:"flashcardId"`
	Rating      float64 `json:"rating"`
	Difficulty  float64 `json:"difficulty"`
}

type simConfig struct {
	cards    int
	answers  int
	batch    int
	skill    float64
	fraction float64
	seed     int64
	output   string
}

// runSimulate runs a learner with a fixed skill against cards with hidden
// difficulties, feeding the answers through the import pipeline of a fresh
// in-memory service. It reports how well the learned ratings recover the
// hidden difficulty order. The persisted state is not touched.
func runSimulate(ctx context.Context, e *env, args []string) (any, bool, error) {
	fs := newFlagSet(e, "simulate")
	sc := simConfig{}
	fs.IntVar(&sc.cards, "cards", defaultSimCards, "number of synthetic flashcards")
	fs.IntVar(&sc.answers, "answers", defaultSimAnswers, "number of answers to generate")
	fs.IntVar(&sc.batch, "batch", defaultSimBatch, "answers generated between imports")
	fs.Float64Var(&sc.skill, "skill", defaultSimSkill, "hidden rating of the synthetic learner")
	fs.Float64Var(&sc.fraction, "fraction", e.cfg.SampleFraction, "sample window fraction used to pick cards")
	fs.Int64Var(&sc.seed, "seed", 1, "random seed")
	fs.StringVar(&sc.output, "output", "", "write the generated answers to this JSON-lines file")
	if err := parseFlags(fs, args); err != nil {
		return nil, false, err
	}
	if fs.NArg() != 0 || sc.cards < 1 || sc.answers < 0 || sc.batch < 1 ||
		math.IsNaN(sc.fraction) || sc.fraction <= 0 || sc.fraction > 1 {
		return nil, false, ErrUsage
	}

	report, answers, err := simulate(ctx, e, sc)
	if err != nil {
		return nil, false, err
	}

	if sc.output != "" {
		if err := writeAnswers(sc.output, answers); err != nil {
			return nil, false, err
		}
		report.Output = sc.output
	}
	return report, false, nil
}

func simulate(ctx context.Context, e *env, sc simConfig) (*SimulationReport, []model.Answer, error) {
	rng := rand.New(rand.NewSource(sc.seed)) //nolint:gosec // reproducible synthetic data

	ids := make([]string, sc.cards)
	difficulty := make(map[string]float64, sc.cards)
	for i := range ids {
		ids[i] = fmt.Sprintf("sim-%04d.png", i)
		difficulty[ids[i]] = simDifficultyMin + rng.Float64()*simDifficultySpan
	}

	svc := service.New(
		service.WithUserKFactor(e.cfg.UserKFactor),
		service.WithFlashcardKFactor(e.cfg.FlashcardKFactor),
		service.WithInitialRating(e.cfg.InitialRating),
		service.WithSampleFraction(sc.fraction),
		service.WithRand(rand.New(rand.NewSource(sc.seed+1))), //nolint:gosec // reproducible synthetic data
		service.WithImportQueueSize(sc.batch),
	)
	if _, err := svc.RegisterDeck(ctx, ids); err != nil {
		return nil, nil, err
	}

	e.log.Info(ctx, "simulation started",
		logger.Int("cards", sc.cards),
		logger.Int("answers", sc.answers),
		logger.Float64("skill", sc.skill),
		logger.Int64("seed", sc.seed),
	)

	answers := make([]model.Answer, 0, sc.answers)
	applied, correct := 0, 0
	for len(answers) < sc.answers {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		n := min(sc.batch, sc.answers-len(answers))
		batch := make([]model.Answer, 0, n)
		for range n {
			id, err := svc.NextCard(ctx)
			if err != nil {
				return nil, nil, err
			}
			uid, err := uuid.NewRandomFromReader(rng)
			if err != nil {
				return nil, nil, err
			}
			// The learner answers correctly with the Elo expectation of
			// their hidden skill against the card's hidden difficulty.
			ok := rng.Float64() < elo.Expected(sc.skill, difficulty[id])
			if ok {
				correct++
			}
			batch = append(batch, model.Answer{
				ID:          uid.String(),
				FlashcardID: id,
				IsCorrect:   ok,
				Timestamp:   simStartMillis + int64(len(answers)+len(batch))*simAnswerInterval,
			})
		}
		summary, err := svc.ImportAnswers(ctx, batch)
		if err != nil {
			return nil, nil, err
		}
		applied += summary.Applied
		answers = append(answers, batch...)
	}

	report := &SimulationReport{
		Cards:      sc.cards,
		Answers:    len(answers),
		Applied:    applied,
		Skill:      sc.skill,
		UserRating: svc.UserRating(),
	}
	if len(answers) > 0 {
		report.Accuracy = float64(correct) / float64(len(answers))
	}

	var learned, hidden []float64
	var cards []SimulatedCard
	for _, c := range svc.Competitors() {
		if model.KindOf(c.ID) != model.KindFlashcard {
			continue
		}
		learned = append(learned, c.Rating)
		hidden = append(hidden, difficulty[c.ID])
		cards = append(cards, SimulatedCard{FlashcardID: c.ID, Rating: c.Rating, Difficulty: difficulty[c.ID]})
	}
	report.Correlation = spearman(learned, hidden)

	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Rating != cards[j].Rating {
			return cards[i].Rating > cards[j].Rating
		}
		return cards[i].FlashcardID < cards[j].FlashcardID
	})
	report.Hardest = cards[:min(simHardestListSize, len(cards))]

	e.log.Info(ctx, "simulation finished",
		logger.Int("applied", applied),
		logger.Float64("correlation", report.Correlation),
		logger.Float64("userRating", report.UserRating),
	)
	return report, answers, nil
}

func writeAnswers(path string, answers []model.Answer) error {
	f, err := os.Create(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAnswerLog, err)
	}
	if err := encodeAnswers(f, answers); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrAnswerLog, err)
	}
	return f.Close()
}

// spearman returns the rank correlation of x and y, or 0 when either has no
// spread. Tied values share their average rank.
func spearman(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	rx, ry := ranks(x), ranks(y)

	n := float64(len(x))
	var mx, my float64
	for i := range rx {
		mx += rx[i]
		my += ry[i]
	}
	mx /= n
	my /= n

	var cov, vx, vy float64
	for i := range rx {
		dx, dy := rx[i]-mx, ry[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

func ranks(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	out := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && v[idx[j+1]] == v[idx[i]] {
			j++
		}
		avg := float64(i+j) / 2
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}
