package flow

import (
	"context"
	"testing"
	"time"

	"github.com/eventflow/eventflow/pkg/event"
)

func TestBoundedQueueOrdering(t *testing.T) {
	q := NewBoundedQueue(4)
	ctx := context.Background()

	for _, msg := range []string{"a", "b", "c"} {
		batch := event.NewBatch(event.LogFromMap(map[string]interface{}{"message": msg}))
		if err := q.Push(ctx, batch); err != nil {
			t.Fatalf("push %s: %v", msg, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		batch, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if v, _ := batch.Events()[0].Field("message"); v != want {
			t.Errorf("got %v, want %v", v, want)
		}
	}
}

func TestBoundedQueueBlocksProducerWhenFull(t *testing.T) {
	q := NewBoundedQueue(1)
	ctx := context.Background()

	if err := q.Push(ctx, event.NewBatch(event.NewLog())); err != nil {
		t.Fatalf("first push: %v", err)
	}

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(ctx, event.NewBatch(event.NewLog()))
	}()

	select {
	case err := <-pushed:
		t.Fatalf("push completed on a full queue: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := q.Pop(ctx); err != nil {
		t.Fatalf("pop: %v", err)
	}
	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("unblocked push: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("push stayed blocked after pop freed capacity")
	}
}

func TestBoundedQueueDrainsAfterClose(t *testing.T) {
	q := NewBoundedQueue(2)
	ctx := context.Background()

	if err := q.Push(ctx, event.NewBatch(event.NewLog())); err != nil {
		t.Fatalf("push: %v", err)
	}
	q.Close()

	if _, err := q.Pop(ctx); err != nil {
		t.Fatalf("pop after close: %v", err)
	}
	if _, err := q.Pop(ctx); err != ErrQueueClosed {
		t.Errorf("got %v, want ErrQueueClosed", err)
	}
	if err := q.Push(ctx, event.NewBatch(event.NewLog())); err != ErrQueueClosed {
		t.Errorf("push after close: got %v, want ErrQueueClosed", err)
	}
}

func TestTokenBucketBurstThenRefill(t *testing.T) {
	tb := NewTokenBucket(3, 1000)

	for i := 0; i < 3; i++ {
		if !tb.TryAcquire(1) {
			t.Fatalf("acquire %d failed inside burst capacity", i)
		}
	}
	if tb.TryAcquire(1) {
		t.Error("acquired beyond capacity without waiting for refill")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tb.Acquire(ctx, 1); err != nil {
		t.Errorf("blocking acquire after refill window: %v", err)
	}
}

func TestTokenBucketAcquireHonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	if !tb.TryAcquire(1) {
		t.Fatal("initial acquire failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tb.Acquire(ctx, 1); err == nil {
		t.Error("expected context deadline error")
	}
}
