// Package queue holds pending ranking run requests.
//
// Runs are heavy and rare, so the queue is a small bounded channel that
// rejects instead of blocking when full.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/pkg/metrics"
)

const defaultQueueCapacity = 16

// Request is the payload type flowing through the queue.
type Request = model.RunRequest

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a request. It returns ErrFull or ErrClosed when the
	// request was not accepted.
	Enqueue(ctx context.Context, r Request) error

	// Dequeue returns a channel of requests, closed once the queue is closed
	// and drained or ctx is done.
	Dequeue(ctx context.Context) <-chan Request

	// Len returns the number of queued requests.
	Len() int

	// Cap returns the queue capacity.
	Cap() int

	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	requests chan Request
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan Request, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, r Request) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return ErrClosed
	}
	if r.EnqueuedAt.IsZero() {
		r.EnqueuedAt = time.Now()
	}

	select {
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		return ctx.Err()
	default:
	}

	select {
	case q.requests <- r:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.requests))
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		return ErrFull
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Request {
	out := make(chan Request)
	go func() {
		defer close(out)
		for {
			select {
			case r, ok := <-q.requests:
				if !ok {
					return
				}
				select {
				case out <- r:
					metrics.RecordQueueDequeue(time.Since(r.EnqueuedAt))
					metrics.UpdateQueueSize(len(q.requests))
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) Len() int {
	return len(q.requests)
}

func (q *InMemoryQueue) Cap() int {
	return q.capacity
}

// Close stops accepting requests. Already queued requests can still be drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.requests)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
