package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scamshield-ai/honeypot-platform/internal/observability/metrics"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

const (
	receiveBatch       = 10
	receiveWaitSeconds = 1
)

// Dispatcher decouples report submission from the turn path: the engine
// enqueues a bundle and moves on, worker goroutines drain the queue into the
// sink. Shutdown stops the workers and then drains whatever is still queued,
// so no accepted submission is silently dropped.
type Dispatcher struct {
	queue   reportQueue
	sink    Sink
	workers int
	logger  *logging.Logger
	metrics *metrics.EngagementMetrics

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once

	runCtx    context.Context
	runCancel context.CancelFunc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherMetrics attaches submission observability.
func WithDispatcherMetrics(m *metrics.EngagementMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher builds a dispatcher over the given queue and sink.
func NewDispatcher(queue reportQueue, sink Sink, workers int, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if queue == nil {
		panic("report: dispatcher queue cannot be nil")
	}
	if sink == nil {
		panic("report: dispatcher sink cannot be nil")
	}
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = logging.Default()
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:     queue,
		sink:      sink,
		workers:   workers,
		logger:    logger,
		stop:      make(chan struct{}),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("report dispatcher started", "workers", d.workers)
}

// Enqueue accepts a bundle for submission. It blocks only while the queue is
// full; delivery happens on the workers.
func (d *Dispatcher) Enqueue(ctx context.Context, bundle Bundle) error {
	return d.queue.Enqueue(ctx, bundle)
}

// Shutdown stops the workers, then drains any still-queued submissions until
// the queue is empty or ctx expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.stop)
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		d.runCancel()
		return fmt.Errorf("report: dispatcher shutdown: %w", ctx.Err())
	}
	defer d.runCancel()

	for {
		if ctx.Err() != nil {
			return fmt.Errorf("report: dispatcher drain: %w", ctx.Err())
		}
		pending, err := d.queue.Dequeue(ctx, receiveBatch, receiveWaitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("report: dispatcher drain: %w", ctx.Err())
			}
			return err
		}
		if len(pending) == 0 {
			d.logger.Info("report dispatcher drained")
			return nil
		}
		for _, p := range pending {
			d.deliver(ctx, p)
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		pending, err := d.queue.Dequeue(d.runCtx, receiveBatch, receiveWaitSeconds)
		if err != nil {
			if d.runCtx.Err() != nil {
				return
			}
			d.logger.Error("report queue receive failed", "error", err)
			select {
			case <-d.stop:
				return
			case <-time.After(time.Second):
			}
			continue
		}
		for _, p := range pending {
			d.deliver(d.runCtx, p)
		}
	}
}

// deliver submits one queued bundle. The bundle is acked only after a
// successful submission; SQS redelivers unacked bundles after the visibility
// timeout.
func (d *Dispatcher) deliver(ctx context.Context, p pendingReport) {
	if p.DecodeErr != nil {
		d.logger.Error("report bundle unparseable, dropping", "message_id", p.ID, "error", p.DecodeErr)
		d.metrics.ObserveReport("invalid")
		_ = d.queue.Ack(ctx, p.Receipt)
		return
	}

	if err := d.sink.Submit(ctx, p.Bundle); err != nil {
		d.logger.Error("report submission failed",
			"session_id", p.Bundle.SessionID,
			"error", err,
		)
		d.metrics.ObserveReport("failure")
		return
	}

	d.metrics.ObserveReport("success")
	if err := d.queue.Ack(ctx, p.Receipt); err != nil {
		d.logger.Warn("report ack failed", "message_id", p.ID, "error", err)
	}
}
