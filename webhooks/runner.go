package webhooks

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-relay/core"
)

// Runner drives a Dispatcher in a loop: one batch, then an idle pause, until
// the context is cancelled. Batch errors are logged and the loop continues.
type Runner struct {
	Dispatcher   *Dispatcher
	BatchSize    int
	IdleInterval time.Duration
	// Sleep waits for d or ctx cancellation. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRunner(dispatcher *Dispatcher, cfg core.WebhooksConfig) *Runner {
	return &Runner{
		Dispatcher:   dispatcher,
		BatchSize:    cfg.WorkerBatchSize,
		IdleInterval: cfg.IdleInterval(),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.Dispatcher == nil {
		return fmt.Errorf("webhooks: runner dispatcher is required")
	}
	core.LogWithLevel(ctx, r.Dispatcher.logger, "info", "webhook worker started", map[string]any{
		"batch_size":       r.batchSize(),
		"idle_interval_ms": r.IdleInterval.Milliseconds(),
	})
	for {
		if ctx.Err() != nil {
			return nil
		}
		// RunBatch logs its own failures.
		_, _ = r.Dispatcher.RunBatch(ctx, r.batchSize())
		if err := r.sleep(ctx, r.IdleInterval); err != nil {
			return nil
		}
	}
}

func (r *Runner) batchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return core.DefaultConfig().Webhooks.WorkerBatchSize
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
