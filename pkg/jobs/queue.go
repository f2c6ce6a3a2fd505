// Package jobs runs background work on a bounded in-memory queue.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueStopped is returned once Stop has been called or the parent
	// context is done.
	ErrQueueStopped = errors.New("queue is stopped")
	// ErrQueueNotStarted is returned before Start.
	ErrQueueNotStarted = errors.New("queue is not started")
)

// Job is one unit of work.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A returned error schedules a retry until
// MaxRetries is exhausted.
type Handler func(context.Context, Job) error

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// DrainTimeout bounds how long Stop keeps processing buffered jobs.
	// Zero discards them.
	DrainTimeout time.Duration
	Logger       *zap.Logger
}

// Stats are cumulative counters of a queue.
type Stats struct {
	Processed uint64
	Failed    uint64
	Retried   uint64
	Dropped   uint64
	Pending   int
}

// Queue dispatches jobs to a fixed set of worker goroutines.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	state  int

	processed uint64
	failed    uint64
	retried   uint64
	dropped   uint64
}

const (
	stateIdle = iota
	stateRunning
	stateStopped
)

// NewQueue builds a queue. Nothing runs until Start.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != stateIdle {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.state = stateRunning
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers), zap.Int("buffer", q.cfg.BufferSize))
}

// Stop cancels the workers and waits for them. With a DrainTimeout the
// buffered jobs are processed first.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.state != stateRunning {
		q.mu.Unlock()
		return
	}
	q.state = stateStopped
	q.mu.Unlock()

	if q.cfg.DrainTimeout > 0 {
		q.drain()
	}
	q.cancel()
	q.wg.Wait()
	if n := len(q.jobs); n > 0 {
		atomic.AddUint64(&q.dropped, uint64(n))
		q.logger.Warn("queue stopped with pending jobs", zap.Int("pending", n))
	}
	q.logger.Info("queue stopped")
}

func (q *Queue) drain() {
	deadline := time.NewTimer(q.cfg.DrainTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for len(q.jobs) > 0 {
		select {
		case <-deadline.C:
			return
		case <-q.ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func (q *Queue) accepting() (context.Context, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch q.state {
	case stateIdle:
		return nil, fmt.Errorf("%s: %w", q.name, ErrQueueNotStarted)
	case stateStopped:
		return nil, fmt.Errorf("%s: %w", q.name, ErrQueueStopped)
	}
	return q.ctx, nil
}

// Enqueue pushes a job, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	ctx, err := q.accepting()
	if err != nil {
		return err
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", q.name, ErrQueueStopped)
	case q.jobs <- job:
		return nil
	}
}

// TryEnqueue pushes a job without blocking and fails with ErrQueueFull when
// the buffer has no room.
func (q *Queue) TryEnqueue(job Job) error {
	ctx, err := q.accepting()
	if err != nil {
		atomic.AddUint64(&q.dropped, 1)
		return err
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case <-ctx.Done():
		atomic.AddUint64(&q.dropped, 1)
		return fmt.Errorf("%s: %w", q.name, ErrQueueStopped)
	case q.jobs <- job:
		return nil
	default:
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// Len reports how many jobs are waiting.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Stats returns the counters of the queue.
func (q *Queue) Stats() Stats {
	return Stats{
		Processed: atomic.LoadUint64(&q.processed),
		Failed:    atomic.LoadUint64(&q.failed),
		Retried:   atomic.LoadUint64(&q.retried),
		Dropped:   atomic.LoadUint64(&q.dropped),
		Pending:   len(q.jobs),
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
				continue
			}
			atomic.AddUint64(&q.processed, 1)
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err)}
	if job.Attempt > q.cfg.MaxRetries {
		atomic.AddUint64(&q.failed, 1)
		q.logger.Error("job exceeded retries", fields...)
		return
	}
	atomic.AddUint64(&q.retried, 1)
	q.logger.Warn("job failed, retrying", fields...)

	q.wg.Add(1)
	go func(j Job) {
		defer q.wg.Done()
		timer := time.NewTimer(q.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			atomic.AddUint64(&q.dropped, 1)
		case <-timer.C:
			select {
			case q.jobs <- j:
			case <-q.ctx.Done():
				atomic.AddUint64(&q.dropped, 1)
			}
		}
	}(job)
}
