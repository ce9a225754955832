package processor

import (
	"context"
	"log/slog"
	"time"

	"creditwatch/internal/queue"
)

const (
	// DefaultBatchSize bounds how many messages one receive call leases.
	DefaultBatchSize = 10
	// DefaultReceiveWait bounds how long a receive call blocks.
	DefaultReceiveWait = 5 * time.Second
	// DefaultIdleBackoff is the sleep after an empty batch.
	DefaultIdleBackoff = 1 * time.Second
)

// Worker is one polling consumer against the alert queue. Multiple workers
// may run concurrently; the queue leases each message to at most one of
// them, and no ordering across messages or workers is assumed.
type Worker struct {
	queue       queue.Client
	processor   *Processor
	batchSize   int
	receiveWait time.Duration
	idleBackoff time.Duration
}

// NewWorker creates a polling worker. Non-positive batch size and durations
// fall back to the defaults.
func NewWorker(q queue.Client, p *Processor, batchSize int, receiveWait, idleBackoff time.Duration) *Worker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if receiveWait <= 0 {
		receiveWait = DefaultReceiveWait
	}
	if idleBackoff <= 0 {
		idleBackoff = DefaultIdleBackoff
	}
	return &Worker{
		queue:       q,
		processor:   p,
		batchSize:   batchSize,
		receiveWait: receiveWait,
		idleBackoff: idleBackoff,
	}
}

// Run polls the queue until ctx is cancelled. Cancellation stops new
// receives, but the in-flight batch is still resolved to terminal queue
// calls so no leased message is left invisible to both the processor and
// the queue.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("Starting alert processing worker",
		"batch_size", w.batchSize,
		"receive_wait", w.receiveWait,
		"idle_backoff", w.idleBackoff,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Alert processing worker stopped")
			return nil
		default:
		}

		batch, err := w.queue.ReceiveBatch(ctx, w.batchSize, w.receiveWait)
		if err != nil {
			if ctx.Err() != nil {
				w.drain(ctx, batch)
				slog.Info("Alert processing worker stopped")
				return nil
			}
			slog.Error("Failed to receive alert batch", "error", err)
			w.sleep(ctx, w.idleBackoff)
			continue
		}

		if len(batch) == 0 {
			w.sleep(ctx, w.idleBackoff)
			continue
		}

		w.drain(ctx, batch)
	}
}

// drain processes a batch and resolves every outcome against the queue,
// independent of cancellation.
func (w *Worker) drain(ctx context.Context, batch []queue.QueuedMessage) {
	if len(batch) == 0 {
		return
	}
	// Processing must finish even when shutdown has begun.
	flight := context.WithoutCancel(ctx)
	outcomes := w.processor.Process(flight, batch)
	w.resolve(flight, batch, outcomes)
}

// resolve turns outcomes into terminal queue calls. Outcomes are positional
// with the batch: Process returns one outcome per message in order.
func (w *Worker) resolve(ctx context.Context, batch []queue.QueuedMessage, outcomes []Outcome) {
	for i, outcome := range outcomes {
		msg := batch[i]
		var err error
		switch outcome.Kind {
		case OutcomeComplete:
			err = w.queue.Complete(ctx, msg)
		case OutcomeRetry:
			err = w.queue.Abandon(ctx, msg)
		case OutcomeDeadLetter:
			err = w.queue.DeadLetter(ctx, msg, outcome.Reason)
		}
		if err != nil {
			// The message lease lapses and the queue redelivers it; the
			// side effects are idempotent so reprocessing is safe.
			slog.Error("Failed to resolve message outcome",
				"message_id", msg.MessageID,
				"outcome", outcome.Kind.String(),
				"error", err,
			)
		}
	}
}

// sleep waits for d or until ctx is cancelled.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
