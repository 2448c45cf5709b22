package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, Job{Ticker: "AAPL", Seq: 0}) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue(ctx)
	if j.Ticker != "AAPL" {
		t.Errorf("expected AAPL, got %v", j.Ticker)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, Job{Ticker: "A"}) || !q.Enqueue(ctx, Job{Ticker: "B"}) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, Job{Ticker: "C"}) {
		t.Error("expected enqueue to fail when full")
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(3))
	ctx := context.Background()
	for i, s := range []string{"A", "B", "C"} {
		q.Enqueue(ctx, Job{Ticker: s, Seq: i})
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, Job{Ticker: "D"}) {
		t.Error("expected enqueue after close to fail")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	var got []string
	for j := range q.Dequeue(ctx) {
		got = append(got, j.Ticker)
	}
	if len(got) != 3 || got[0] != "A" || got[2] != "C" {
		t.Errorf("expected queued jobs in order, got %v", got)
	}
}

func TestInMemoryQueue_DequeueStopsOnCancel(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel not closed after cancel")
	}
}

func TestInMemoryQueue_EnqueueCancelled(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if q.Enqueue(ctx, Job{Ticker: "A"}) {
		t.Error("expected enqueue with cancelled context to fail")
	}
}
