package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Enqueue when the buffer has no room.
var ErrQueueFull = errors.New("queue full")

// Job represents a queued background task.
type Job[T any] struct {
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler[T any] func(context.Context, Job[T]) error

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
// Enqueue never blocks; Stop drains what is already buffered.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config
	logger  *zap.Logger

	jobs    chan Job[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger,
		jobs:    make(chan Job[T], cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.cfg.Workers)
}

// Enqueue hands payload to a worker without blocking.
func (q *Queue[T]) Enqueue(payload T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.started || q.closed {
		return fmt.Errorf("queue %s not running", q.name)
	}
	select {
	case q.jobs <- Job[T]{Payload: payload, Enqueued: time.Now().UTC()}:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

// Stop refuses new jobs, lets workers drain the buffer and waits for them.
// When ctx expires first the remaining jobs are abandoned.
func (q *Queue[T]) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.started || q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		q.logger.Sugar().Infow("queue stopped", "queue", q.name)
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return fmt.Errorf("queue %s drain: %w", q.name, ctx.Err())
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		if q.ctx.Err() != nil {
			continue
		}
		q.process(job)
	}
}

func (q *Queue[T]) process(job Job[T]) {
	for {
		err := q.handler(q.ctx, job)
		if err == nil {
			return
		}
		job.Attempt++
		if job.Attempt > q.cfg.MaxRetries || q.ctx.Err() != nil {
			q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "attempts", job.Attempt, "error", err)
			return
		}
		q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "attempt", job.Attempt, "error", err)

		timer := time.NewTimer(q.cfg.RetryDelay)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
