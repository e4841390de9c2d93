package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/powerrank/internal/domain/model"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Cap(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if err := q.Enqueue(ctx, Request{ID: "r1", SeasonID: "2025"}); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	r := <-q.Dequeue(ctx)
	if r.ID != "r1" || r.SeasonID != "2025" {
		t.Errorf("unexpected request %+v", r)
	}
	if r.EnqueuedAt.IsZero() {
		t.Error("expected enqueue time to be stamped")
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"r1", "r2"} {
		if err := q.Enqueue(ctx, Request{ID: id}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	if err := q.Enqueue(ctx, Request{ID: "r3"}); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
}

func TestInMemoryQueue_Order(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	want := []string{"a", "b", "c"}
	for _, id := range want {
		_ = q.Enqueue(ctx, Request{ID: id, Segment: model.RegularSeason})
	}
	ch := q.Dequeue(ctx)
	for _, id := range want {
		if got := <-ch; got.ID != id {
			t.Errorf("expected %s, got %s", id, got.ID)
		}
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	_ = q.Enqueue(ctx, Request{ID: "queued"})
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if err := q.Enqueue(ctx, Request{ID: "late"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	var drained []string
	for r := range q.Dequeue(ctx) {
		drained = append(drained, r.ID)
	}
	if len(drained) != 1 || drained[0] != "queued" {
		t.Errorf("expected queued request to drain, got %v", drained)
	}
}

func TestInMemoryQueue_ContextCancel(t *testing.T) {
	q := NewInMemoryQueue()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, Request{ID: "r1"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	dctx, dcancel := context.WithCancel(context.Background())
	ch := q.Dequeue(dctx)
	dcancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected no request")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel not closed after cancel")
	}
}
