package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/powerrank/internal/adapters/mq/queue"
	"github.com/okian/powerrank/internal/adapters/mq/worker"
	"github.com/okian/powerrank/internal/adapters/repository"
	"github.com/okian/powerrank/internal/config"
	"github.com/okian/powerrank/internal/domain/dedupe"
	"github.com/okian/powerrank/internal/domain/model"
	"github.com/okian/powerrank/internal/domain/types"
	"github.com/okian/powerrank/pkg/logger"
	"github.com/okian/powerrank/pkg/metrics"
)

// RunState is the lifecycle position of a submitted run.
type RunState string

// Run states.
const (
	RunQueued  RunState = "queued"
	RunRunning RunState = "running"
	RunDone    RunState = "done"
	RunFailed  RunState = "failed"
)

// RunStatus is what the service remembers about a submitted run.
type RunStatus struct {
	Request model.RunRequest `json:"request"`
	State   RunState         `json:"state"`
	Result  *Result          `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Stats is a snapshot of the service for monitoring.
type Stats struct {
	Started    bool       `json:"started"`
	QueueLen   int        `json:"queue_length"`
	QueueCap   int        `json:"queue_capacity"`
	Pending    int        `json:"pending"`
	Tracked    int        `json:"tracked_runs"`
	LastRunID  string     `json:"last_run_id,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastStatus RunState   `json:"last_status,omitempty"`
}

// Service serialises ranking runs through a bounded queue and a single
// worker, and serves computed output to readers.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	runner  *Runner
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool

	queueSize  int
	recentRuns int

	runs    map[string]*RunStatus
	order   []string
	pending map[string]string // dedupe key -> run id
	lastID  string

	started    bool
	logger     logger.Logger
	runnerOpts []RunnerOption
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets how many runs may wait at once.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRecentRuns sets how many finished runs are remembered.
func WithRecentRuns(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentRuns = n
		}
	}
}

// WithDeduper overrides the pending-run deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRunnerOptions passes options to the Runner the service builds.
func WithRunnerOptions(opts ...RunnerOption) Option {
	return func(s *Service) {
		s.runnerOpts = append(s.runnerOpts, opts...)
	}
}

// New constructs a Service around store.
func New(store repository.Store, cfg config.Ranking, opts ...Option) *Service {
	s := &Service{
		store:      store,
		queueSize:  16,
		recentRuns: 50,
		runs:       make(map[string]*RunStatus),
		pending:    make(map[string]string),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper()
	}
	runnerOpts := append([]RunnerOption{WithRunnerLogger(s.logger)}, s.runnerOpts...)
	s.runner = NewRunner(store, cfg, runnerOpts...)
	return s
}

// Runner returns the service's runner.
func (s *Service) Runner() *Runner {
	return s.runner
}

// Start creates the run queue and its worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(1, s.queue, worker.HandlerFunc(s.handle),
		worker.WithName("runner"),
		worker.WithLogger(s.logger),
	)
	s.pool.Start(ctx)
	s.started = true
	s.logger.Info(ctx, "ranking service started", logger.Int("queueSize", s.queueSize))
	return nil
}

// Stop closes the queue and waits for the run in flight.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	pool := s.pool
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping ranking service...")
	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker shutdown", logger.Error(err))
	}
	s.logger.Info(ctx, "ranking service stopped")
}

// Submit queues a run. When an identical run for the same season and
// segment is already pending, its status is returned with deduped=true.
func (s *Service) Submit(ctx context.Context, req model.RunRequest) (RunStatus, bool, error) { //nolint:gocritic // hugeParam
	if req.SeasonID == "" {
		return RunStatus{}, false, ErrMissingSeason
	}
	seg, ok := model.ParseSegment(string(req.Segment))
	if !ok {
		return RunStatus{}, false, fmt.Errorf("%w: unknown segment %q", ErrConfiguration, req.Segment)
	}
	req.Segment = seg
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return RunStatus{}, false, ErrNotStarted
	}

	key := dedupe.Key(req.SeasonID, string(req.Segment))
	if !s.deduper.Acquire(ctx, key) {
		if id, ok := s.pending[key]; ok {
			if st, ok := s.runs[id]; ok {
				metrics.RecordRunDeduplicated()
				s.logger.Debug(ctx, "duplicate run request", logger.String("key", key), logger.String("run_id", id))
				return *st, true, nil
			}
		}
		// The key outlived its run record; take it over.
		s.deduper.Release(ctx, key)
		s.deduper.Acquire(ctx, key)
	}

	if err := s.queue.Enqueue(ctx, req); err != nil {
		s.deduper.Release(ctx, key)
		return RunStatus{}, false, err
	}
	st := &RunStatus{Request: req, State: RunQueued}
	s.track(st)
	s.pending[key] = req.ID
	s.logger.Info(ctx, "run queued",
		logger.String("run_id", req.ID),
		logger.String("season", req.SeasonID),
		logger.String("segment", string(req.Segment)),
		logger.String("source", string(req.Source)),
	)
	return *st, false, nil
}

// track records st and forgets the oldest finished runs beyond the limit.
// Caller holds s.mu.
func (s *Service) track(st *RunStatus) {
	s.runs[st.Request.ID] = st
	s.order = append(s.order, st.Request.ID)
	for len(s.order) > s.recentRuns {
		evicted := false
		for i, id := range s.order {
			if r := s.runs[id]; r.State == RunDone || r.State == RunFailed {
				delete(s.runs, id)
				s.order = append(s.order[:i], s.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

func (s *Service) handle(ctx context.Context, req model.RunRequest) error { //nolint:gocritic // hugeParam
	key := dedupe.Key(req.SeasonID, string(req.Segment))
	s.setState(req.ID, RunRunning, nil, nil)
	s.mu.Lock()
	if s.pending[key] == req.ID {
		delete(s.pending, key)
		s.deduper.Release(ctx, key)
	}
	s.mu.Unlock()

	res, err := s.runner.Run(ctx, req)
	if err != nil {
		s.setState(req.ID, RunFailed, res, err)
		return err
	}
	s.setState(req.ID, RunDone, res, nil)
	return nil
}

func (s *Service) setState(id string, state RunState, res *Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.runs[id]
	if !ok {
		return
	}
	st.State = state
	if res != nil {
		st.Result = res
	}
	if err != nil {
		st.Error = err.Error()
	}
	if state == RunDone || state == RunFailed {
		s.lastID = id
	}
}

// Run looks up a submitted run.
func (s *Service) Run(id string) (RunStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.runs[id]
	if !ok {
		return RunStatus{}, ErrRunNotFound
	}
	return *st, nil
}

// Standings returns a season segment's standings in API shape.
func (s *Service) Standings(ctx context.Context, seasonID string, segment model.Segment) ([]types.StandingEntry, error) {
	if seasonID == "" {
		return nil, ErrMissingSeason
	}
	rows, err := s.store.Standings(ctx, seasonID, segment)
	if err != nil {
		return nil, err
	}
	out := make([]types.StandingEntry, len(rows))
	for i, r := range rows {
		out[i] = types.FromStanding(r)
	}
	return out, nil
}

// Power returns one week's power table in API shape.
func (s *Service) Power(ctx context.Context, seasonID, weekID string) ([]types.PowerEntry, error) {
	if seasonID == "" {
		return nil, ErrMissingSeason
	}
	if weekID == "" {
		return nil, errors.New("week id required")
	}
	rows, err := s.store.PowerWeek(ctx, seasonID, weekID)
	if err != nil {
		return nil, err
	}
	out := make([]types.PowerEntry, len(rows))
	for i, r := range rows {
		out[i] = types.FromSnapshot(r)
	}
	return out, nil
}

// Checks computes a season without writing and validates the output.
func (s *Service) Checks(ctx context.Context, seasonID string) ([]CheckResult, error) {
	return s.runner.Check(ctx, seasonID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Started: s.started,
		Pending: s.deduper.Pending(),
		Tracked: len(s.runs),
	}
	if s.queue != nil {
		st.QueueLen = s.queue.Len()
		st.QueueCap = s.queue.Cap()
		metrics.UpdateQueueSize(st.QueueLen)
	}
	if last, ok := s.runs[s.lastID]; ok {
		st.LastRunID = last.Request.ID
		st.LastStatus = last.State
		if last.Result != nil {
			at := last.Result.Finished
			st.LastRunAt = &at
		}
	}
	return st
}
