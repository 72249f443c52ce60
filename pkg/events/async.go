package events

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-ledger/pkg/jobs"
)

const drainTimeout = 10 * time.Second

// AsyncPublisher hands events to a worker queue so callers never wait on the
// broker. Failed deliveries are retried by the queue and then logged.
type AsyncPublisher struct {
	next  Publisher
	queue *jobs.Queue[Event]
}

// NewAsyncPublisher starts a dispatch queue in front of next.
func NewAsyncPublisher(ctx context.Context, next Publisher, cfg jobs.Config) *AsyncPublisher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	p := &AsyncPublisher{next: next}
	p.queue = jobs.NewQueue("domain-events", func(ctx context.Context, job jobs.Job[Event]) error {
		return next.Publish(ctx, job.Payload)
	}, cfg)
	p.queue.Start(ctx)
	return p
}

// Publish enqueues event. It fails only when the queue is full or stopped.
func (p *AsyncPublisher) Publish(_ context.Context, event Event) error {
	return p.queue.Enqueue(event)
}

// Close drains queued events and then closes the underlying publisher.
func (p *AsyncPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	return errors.Join(p.queue.Stop(ctx), p.next.Close())
}
