// Package jobs provides a bounded in-process worker pool. Callers keep
// the actual job state and enqueue references; the pool only controls
// concurrency and retries.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job identifies one queued unit of work. Attempt counts executions that
// have already failed.
type Job struct {
	ID       string
	Type     string
	Attempt  int
	Enqueued time.Time
}

// Handler executes a job. A non-nil error schedules a retry until the
// attempt budget is spent.
type Handler func(context.Context, Job) error

// QueueConfig bounds the pool. MaxRetries is the number of re-executions
// after the first failure; zero disables retries.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is a fixed-size worker pool over a buffered channel.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue that feeds the handler.
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

// Start launches the workers. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers), zap.Int("buffer", q.cfg.BufferSize))
}

// Stop cancels the workers and waits for in-flight handlers to return.
// Jobs still buffered are abandoned.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.Int("abandoned", len(q.jobs)))
}

// Enqueue pushes a job, blocking while the buffer is full. It fails once
// the queue is stopped or was never started.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log := q.logger.With(zap.Int("worker", id))
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.retry(job, err)
				continue
			}
			log.Debug("job done",
				zap.String("job_id", job.ID),
				zap.String("type", job.Type),
				zap.Duration("queued_for", time.Since(job.Enqueued)),
			)
		}
	}
}

func (q *Queue) retry(job Job, cause error) {
	if job.Attempt >= q.cfg.MaxRetries {
		q.logger.Error("job dropped",
			zap.String("job_id", job.ID),
			zap.String("type", job.Type),
			zap.Int("executions", job.Attempt+1),
			zap.Error(cause),
		)
		return
	}
	job.Attempt++
	q.logger.Warn("job failed, retrying",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Error(cause),
	)
	time.AfterFunc(q.cfg.RetryDelay, func() {
		if err := q.Enqueue(job); err != nil {
			q.logger.Warn("requeue failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	})
}
