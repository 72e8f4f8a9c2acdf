package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// ErrQueueFull is returned when the buffer has no room for another job.
var ErrQueueFull = fmt.Errorf("queue buffer full")

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
// Enqueue never blocks the caller; Stop closes intake and drains buffered
// jobs until the given timeout elapses.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs chan Job
	quit chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		jobs:       make(chan Job, cfg.BufferSize),
		quit:       make(chan struct{}),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i+1)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop closes intake and waits for buffered jobs to drain. Jobs still
// buffered when the timeout fires are dropped; their count is returned.
func (q *Queue) Stop(timeout time.Duration) int {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return 0
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Sugar().Infow("queue drained", "queue", q.name)
		return 0
	case <-time.After(timeout):
		dropped := len(q.jobs)
		close(q.quit)
		q.logger.Sugar().Errorw("queue drain timed out", "queue", q.name, "dropped", dropped)
		return dropped
	}
}

// Enqueue pushes a job onto the queue without blocking. ErrQueueFull is
// returned when the buffer is saturated.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if q.stopped {
		return fmt.Errorf("queue %s stopped", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth reports the number of buffered jobs awaiting a worker.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

func (q *Queue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.process(ctx, job)

		select {
		case <-q.quit:
			return
		default:
		}
	}
}

// process runs the handler, retrying in place up to maxRetries.
func (q *Queue) process(ctx context.Context, job Job) {
	for {
		err := q.handler(ctx, job)
		if err == nil {
			return
		}

		job.Attempt++
		if job.Attempt > q.maxRetries {
			q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
			return
		}
		q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

		timer := time.NewTimer(q.retryDelay)
		select {
		case <-q.quit:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
