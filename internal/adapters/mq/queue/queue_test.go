package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/okian/cardelo/internal/domain/model"
)

func answer(i int) model.Answer {
	return model.Answer{ID: fmt.Sprintf("answer-%d", i), FlashcardID: fmt.Sprintf("card-%d.png", i%3), IsCorrect: i%2 == 0}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if !q.Enqueue(ctx, answer(1)) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got != answer(1) {
		t.Errorf("expected %v, got %v", answer(1), got)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, answer(1)) || !q.Enqueue(ctx, answer(2)) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, answer(3)) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_FIFOAndDrainAfterClose(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !q.Enqueue(ctx, answer(i)) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, answer(9)) {
		t.Error("expected enqueue after close to fail")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	i := 0
	for a := range q.Dequeue(ctx) {
		if a != answer(i) {
			t.Errorf("position %d: got %v, want %v", i, a, answer(i))
		}
		i++
	}
	if i != 5 {
		t.Errorf("drained %d answers, want 5", i)
	}
}

func TestInMemoryQueue_CanceledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, answer(1)) {
		t.Error("expected enqueue with canceled context to fail")
	}

	// Dequeue stops once its context is canceled even if the queue stays open.
	q.Enqueue(context.Background(), answer(2))
	done := make(chan struct{})
	go func() {
		for range q.Dequeue(ctx) {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dequeue did not stop after cancellation")
	}
}
