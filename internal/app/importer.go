package service

import (
	"context"
	"time"

	"github.com/okian/cardelo/internal/adapters/mq/queue"
	"github.com/okian/cardelo/internal/adapters/mq/worker"
	"github.com/okian/cardelo/internal/domain/model"
	"github.com/okian/cardelo/pkg/logger"
	"github.com/okian/cardelo/pkg/metrics"
)

// Import statuses, also used as metric label values.
const (
	StatusApplied   = "applied"
	StatusDuplicate = "duplicate"
	StatusRejected  = "rejected"
	StatusDropped   = "dropped"
)

// ImportSummary counts what happened to each imported answer.
type ImportSummary struct {
	Applied    int      `json:"applied"`
	Duplicates int      `json:"duplicates"`
	Rejected   int      `json:"rejected"`
	Dropped    int      `json:"dropped"`
	Errors     []string `json:"errors,omitempty"`
}

// ImportAnswers replays answers recorded elsewhere, in order. Answers whose
// key was already imported by this Service are skipped. Answers are fed
// through a bounded queue to a single worker, one queue-full chunk at a
// time. Rejected and dropped answers are forgotten so a later import can
// retry them.
func (s *Service) ImportAnswers(ctx context.Context, answers []model.Answer) (ImportSummary, error) {
	s.mu.Lock()
	summary, outcomes := s.importLocked(ctx, answers)
	s.mu.Unlock()

	for _, o := range outcomes {
		s.notify(ctx, o)
	}

	s.logger.Info(ctx, "answers imported",
		logger.Int("applied", summary.Applied),
		logger.Int("duplicates", summary.Duplicates),
		logger.Int("rejected", summary.Rejected),
		logger.Int("dropped", summary.Dropped),
	)
	return summary, ctx.Err()
}

func (s *Service) importLocked(ctx context.Context, answers []model.Answer) (ImportSummary, []model.Outcome) {
	var summary ImportSummary
	var outcomes []model.Outcome

	count := func(status string) {
		metrics.RecordImportedAnswer(status)
		switch status {
		case StatusApplied:
			summary.Applied++
		case StatusDuplicate:
			summary.Duplicates++
		case StatusRejected:
			summary.Rejected++
		case StatusDropped:
			summary.Dropped++
		}
	}

	applier := worker.ApplierFunc(func(ctx context.Context, a model.Answer) error {
		at := s.now()
		if a.Timestamp > 0 {
			at = time.UnixMilli(a.Timestamp)
		}
		o, err := s.report(ctx, a.FlashcardID, a.IsCorrect, at)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, o)
		return nil
	})

	for start := 0; start < len(answers); start += s.importQueueSize {
		end := min(len(answers), start+s.importQueueSize)

		q := queue.NewInMemoryQueue(queue.WithCapacity(s.importQueueSize))
		pending := make(map[string]bool)
		for _, a := range answers[start:end] {
			key := a.Key()
			if s.deduper.SeenAndRecord(ctx, key) {
				count(StatusDuplicate)
				continue
			}
			if !q.Enqueue(ctx, a) {
				s.deduper.Unrecord(ctx, key)
				count(StatusDropped)
				continue
			}
			pending[key] = true
		}
		_ = q.Close()

		w := worker.NewInMemoryWorker(q, applier,
			worker.WithName("import"),
			worker.WithLogger(s.logger),
			worker.WithResultHandler(func(ctx context.Context, a model.Answer, err error) {
				delete(pending, a.Key())
				if err != nil {
					s.deduper.Unrecord(ctx, a.Key())
					summary.Errors = append(summary.Errors, err.Error())
					count(StatusRejected)
					return
				}
				count(StatusApplied)
			}),
		)
		// The queue is closed, so Run returns once it is drained or ctx ends.
		w.Run(ctx)

		for key := range pending {
			s.deduper.Unrecord(ctx, key)
			count(StatusDropped)
		}
		if ctx.Err() != nil {
			for range answers[end:] {
				count(StatusDropped)
			}
			break
		}
	}
	metrics.UpdateQueueDepth(0)
	return summary, outcomes
}
