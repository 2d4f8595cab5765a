package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue buffers bundles in-process on a channel, typed end to end with
// no serialization round-trip. It backs the dispatcher in tests and in
// deployments without a configured SQS queue; acked-or-not, a dequeued bundle
// is gone, so there is no redelivery.
type MemoryQueue struct {
	ch chan pendingReport
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{
		ch: make(chan pendingReport, buffer),
	}
}

// Enqueue accepts a bundle or blocks until ctx is done.
func (q *MemoryQueue) Enqueue(ctx context.Context, bundle Bundle) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p := pendingReport{
		ID:      uuid.NewString(),
		Receipt: uuid.NewString(),
		Bundle:  bundle,
	}

	select {
	case q.ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a bundle is available, ctx is done, or waitSeconds
// elapses.
func (q *MemoryQueue) Dequeue(ctx context.Context, maxReports int, waitSeconds int) ([]pendingReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxReports <= 0 {
		maxReports = 1
	}

	var timer *time.Timer
	if waitSeconds > 0 {
		timer = time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
	}

	for {
		if timer == nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case p := <-q.ch:
				return q.collect(ctx, p, maxReports), nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case p := <-q.ch:
			return q.collect(ctx, p, maxReports), nil
		}
	}
}

// Ack is a no-op: a dequeued bundle already left the channel.
func (q *MemoryQueue) Ack(_ context.Context, _ string) error {
	return nil
}

func (q *MemoryQueue) collect(ctx context.Context, first pendingReport, max int) []pendingReport {
	if ctx == nil {
		ctx = context.Background()
	}
	pending := make([]pendingReport, 0, max)
	pending = append(pending, first)

	for len(pending) < max {
		select {
		case <-ctx.Done():
			return pending
		case p := <-q.ch:
			pending = append(pending, p)
		default:
			return pending
		}
	}
	return pending
}
