package backfill

import (
	"context"
	"log/slog"
	"time"
)

// Coordinator drains the continuation queue and starts periodic full
// sweeps. It blocks in Run until the context is cancelled.
type Coordinator struct {
	scheduler *Scheduler
	queue     *MemoryQueue
	interval  time.Duration
}

// NewCoordinator creates a coordinator draining queue with scheduler.
// A non-positive interval disables periodic sweeps; the queue is still
// drained for event-driven and operator-triggered work.
func NewCoordinator(scheduler *Scheduler, queue *MemoryQueue, interval time.Duration) *Coordinator {
	return &Coordinator{
		scheduler: scheduler,
		queue:     queue,
		interval:  interval,
	}
}

// Run starts the coordinator loop. It blocks until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	slog.Info("backfill coordinator started",
		"component", "worker",
		"worker", "backfill-coordinator",
		"sweep_interval", c.interval.String(),
	)

	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("backfill coordinator stopped",
				"component", "worker",
				"worker", "backfill-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-tick:
			// Periodic sweep starts from the beginning of the catalog
			if err := c.queue.Enqueue(Task{}); err != nil {
				slog.Warn("periodic sweep not scheduled",
					"component", "worker",
					"worker", "backfill-coordinator",
					"error", err,
				)
			}
		case task := <-c.queue.Tasks():
			c.processTask(ctx, task)
		}
	}
}

// processTask runs one page and schedules its continuation. A failed
// enqueue surfaces the cursor so the sweep can be resumed manually.
func (c *Coordinator) processTask(ctx context.Context, task Task) {
	result, err := c.scheduler.ProcessPage(ctx, task.Cursor)
	if err != nil {
		slog.Error("backfill page failed",
			"component", "worker",
			"worker", "backfill-coordinator",
			"cursor", task.Cursor,
			"batch", task.Batch,
			"error", err,
		)
		return
	}

	if !result.HasMore {
		slog.Info("backfill sweep complete",
			"component", "worker",
			"worker", "backfill-coordinator",
			"batches", task.Batch+1,
		)
		return
	}

	next := Task{Cursor: result.NextCursor, Batch: task.Batch + 1}
	if err := c.queue.Enqueue(next); err != nil {
		slog.Error("backfill continuation not scheduled, resume manually",
			"component", "worker",
			"worker", "backfill-coordinator",
			"resume_cursor", next.Cursor,
			"batch", next.Batch,
			"error", err,
		)
	}
}
