// Package queue defines the contract for enqueuing and consuming answers
// awaiting application.
//
// The in-memory implementation is a bounded FIFO channel. A single consumer
// sees answers in enqueue order.
package queue

import (
	"context"
	"sync"

	"github.com/okian/cardelo/internal/domain/model"
	"github.com/okian/cardelo/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Answer is the payload type flowing through the queue.
type Answer = model.Answer

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an answer to the queue.
	// Returns false if the queue is full or closed and the answer was not enqueued.
	Enqueue(ctx context.Context, a Answer) bool

	// Dequeue returns a channel that receives answers in FIFO order.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Answer

	// Len returns the current number of queued answers.
	Len(ctx context.Context) int

	// Close stops accepting answers. Queued answers remain readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	answers  chan Answer
	capacity int
	mu       sync.RWMutex
	closed   bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.answers = make(chan Answer, q.capacity)
	metrics.UpdateQueueDepth(0)
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, a Answer) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		return false
	}

	select {
	case q.answers <- a:
		metrics.UpdateQueueDepth(len(q.answers))
		return true
	default:
		return false // queue is full
	}
}

// Dequeue implements Queue.Dequeue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Answer {
	out := make(chan Answer)
	go func() {
		defer close(out)
		for a := range q.answers {
			select {
			case out <- a:
				metrics.UpdateQueueDepth(len(q.answers))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len implements Queue.Len.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.answers)
}

// Capacity returns the maximum number of queued answers.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close implements Queue.Close.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.answers)
	q.closed = true
	return nil
}

// IsClosed implements Queue.IsClosed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
