// Package worker drains the run queue and hands each request to a Handler.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/powerrank/internal/adapters/mq/queue"
	"github.com/okian/powerrank/pkg/logger"
	"github.com/okian/powerrank/pkg/metrics"
)

const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Request is what workers read off the queue.
type Request = queue.Request

// Handler executes one run request.
type Handler interface {
	Handle(ctx context.Context, r Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, r Request) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, r Request) error { return f(ctx, r) } //nolint:gocritic // hugeParam

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Request
}

// Worker processes requests one at a time.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(q Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  h,
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

func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case r, ok := <-requests:
			if !ok {
				return
			}
			if err := w.process(ctx, r); err != nil {
				w.logger.Error(ctx, "run request failed",
					logger.String("run_id", r.ID),
					logger.String("season", r.SeasonID),
					logger.Error(err),
				)
			}
		}
	}
}

// process runs one request; a panicking handler is turned into an error so
// the worker keeps draining the queue.
func (w *InMemoryWorker) process(ctx context.Context, r Request) (err error) { //nolint:gocritic // hugeParam
	defer func() {
		if p := recover(); p != nil {
			metrics.RecordError("worker", "panic")
			err = fmt.Errorf("run %s panicked: %v", r.ID, p)
		}
	}()
	if err := w.handler.Handle(ctx, r); err != nil {
		metrics.RecordError("worker", "handler")
		return err
	}
	return nil
}

// Shutdown stops the worker after the request in flight, if any.
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

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of n workers; n < 1 means one.
func NewPool(n int, q Queue, h Handler, opts ...Option) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{workers: make([]*InMemoryWorker, n), queue: q, logger: logger.Nop()}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, h, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, when it can be closed, and waits for workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		wctx, wcancel := context.WithTimeout(shutdownCtx, workerShutdownTimeout)
		if err := w.Shutdown(wctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
		wcancel()
	}
	return nil
}
