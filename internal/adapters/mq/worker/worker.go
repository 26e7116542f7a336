// Package worker applies queued answers to the rating state.
//
// A single worker consumes the queue so answers are applied strictly in
// enqueue order; rating updates do not commute.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/cardelo/internal/domain/model"
	"github.com/okian/cardelo/pkg/logger"
	"github.com/okian/cardelo/pkg/metrics"
)

// Answer abstracts what workers read off the queue.
type Answer = model.Answer

// Applier applies one answer to the rating state.
type Applier interface {
	Apply(ctx context.Context, a Answer) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, a Answer) error

// Apply implements Applier.
func (f ApplierFunc) Apply(ctx context.Context, a Answer) error { return f(ctx, a) }

// Queue defines how workers receive answers.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Answer
}

// ResultFunc observes the outcome of every applied answer. err is nil on success.
type ResultFunc func(ctx context.Context, a Answer, err error)

// Worker processes answers until its queue drains or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called,
	// or the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	applier  Applier
	onResult ResultFunc
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		applier:  applier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Run implements Worker.Run.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	answers := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case a, ok := <-answers:
			if !ok {
				return
			}
			err := w.process(ctx, a)
			if err != nil {
				w.logger.Warn(ctx, "answer not applied",
					logger.String("answerID", a.ID),
					logger.String("flashcardID", a.FlashcardID),
					logger.Error(err),
				)
			}
			if w.onResult != nil {
				w.onResult(ctx, a, err)
			}
		}
	}
}

// Shutdown implements Worker.Shutdown.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, a Answer) error {
	start := time.Now()
	defer func() {
		metrics.RecordApplyLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.applier.Apply(ctx, a); err != nil {
		return fmt.Errorf("apply answer %s: %w", a.Key(), err)
	}
	return nil
}
