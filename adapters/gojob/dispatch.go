package gojob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/webhooks"
)

type BatchRunner interface {
	RunBatch(ctx context.Context, limit int) (webhooks.BatchResult, error)
}

// NewDispatchMessage builds the job message that triggers one dispatcher
// batch. A non-positive limit leaves the choice to the handler.
func NewDispatchMessage(limit int) *core.JobExecutionMessage {
	params := map[string]any{}
	if limit > 0 {
		params["limit"] = limit
	}
	return &core.JobExecutionMessage{
		JobID:      JobIDWebhookDispatch,
		ScriptPath: JobIDWebhookDispatch,
		Parameters: params,
	}
}

// DispatchScheduler keeps the dispatch job chain alive. After a full batch
// the next job is published right away, otherwise after the idle interval.
type DispatchScheduler struct {
	enqueuer  core.JobEnqueuer
	limit     int
	idleDelay time.Duration
}

func NewDispatchScheduler(enqueuer core.JobEnqueuer, cfg core.WebhooksConfig) *DispatchScheduler {
	return &DispatchScheduler{
		enqueuer:  enqueuer,
		limit:     cfg.WorkerBatchSize,
		idleDelay: cfg.IdleInterval(),
	}
}

// Start publishes the first dispatch job.
func (s *DispatchScheduler) Start(ctx context.Context) (core.JobEnqueueReceipt, error) {
	return s.publish(ctx, 0)
}

// Next publishes the job that follows a finished batch run with limit.
func (s *DispatchScheduler) Next(ctx context.Context, limit int, result webhooks.BatchResult) (core.JobEnqueueReceipt, error) {
	delay := s.idleDelay
	if limit > 0 && result.Selected >= limit {
		delay = 0
	}
	return s.publish(ctx, delay)
}

func (s *DispatchScheduler) publish(ctx context.Context, delay time.Duration) (core.JobEnqueueReceipt, error) {
	if s == nil || s.enqueuer == nil {
		return core.JobEnqueueReceipt{}, fmt.Errorf("gojob: dispatch enqueuer is not configured")
	}
	msg := NewDispatchMessage(s.limit)
	if delay <= 0 {
		return s.enqueuer.Enqueue(ctx, msg)
	}
	scheduled, ok := s.enqueuer.(core.JobScheduledEnqueuer)
	if !ok {
		return core.JobEnqueueReceipt{}, queue.ErrScheduledEnqueueUnsupported
	}
	return scheduled.EnqueueAfter(ctx, msg, delay)
}

// DispatchHandler runs one dispatcher batch per job delivery. A successful
// batch is acked and, with a scheduler attached, followed by the next job.
// A failed batch is nacked for retry after the idle delay. Messages for any
// other job id are dead-lettered.
type DispatchHandler struct {
	runner    BatchRunner
	scheduler *DispatchScheduler
	limit     int
	idleDelay time.Duration
	logger    core.Logger
}

func NewDispatchHandler(runner BatchRunner, cfg core.WebhooksConfig, logger core.Logger) *DispatchHandler {
	return &DispatchHandler{
		runner:    runner,
		limit:     cfg.WorkerBatchSize,
		idleDelay: cfg.IdleInterval(),
		logger:    ensureLogger(logger),
	}
}

// WithScheduler makes the handler publish the follow-up dispatch job.
func (h *DispatchHandler) WithScheduler(scheduler *DispatchScheduler) *DispatchHandler {
	h.scheduler = scheduler
	return h
}

func (h *DispatchHandler) Handle(ctx context.Context, delivery core.JobDelivery) (webhooks.BatchResult, error) {
	if h == nil || h.runner == nil {
		return webhooks.BatchResult{}, fmt.Errorf("gojob: dispatch runner is not configured")
	}
	if delivery == nil {
		return webhooks.BatchResult{}, fmt.Errorf("gojob: delivery is required")
	}

	msg := delivery.Message()
	if msg == nil || msg.JobID != JobIDWebhookDispatch {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		err := fmt.Errorf("gojob: unexpected job %q for webhook dispatch", jobID)
		if nackErr := delivery.Nack(ctx, core.JobNackOptions{
			Disposition: core.JobNackDeadLetter,
			Reason:      err.Error(),
		}); nackErr != nil {
			return webhooks.BatchResult{}, errors.Join(err, nackErr)
		}
		return webhooks.BatchResult{}, err
	}

	limit := h.limitFor(msg)
	result, err := h.runner.RunBatch(ctx, limit)
	if err != nil {
		core.LogWithLevel(ctx, h.logger, "error", "webhook dispatch job failed", map[string]any{
			"job_id":   msg.JobID,
			"limit":    limit,
			"delay_ms": h.idleDelay.Milliseconds(),
			"error":    err.Error(),
		})
		nackErr := delivery.Nack(ctx, core.JobNackOptions{
			Disposition: core.JobNackRetry,
			Delay:       h.idleDelay,
			Reason:      err.Error(),
		})
		if nackErr != nil {
			return result, errors.Join(err, nackErr)
		}
		return result, err
	}
	if err := delivery.Ack(ctx); err != nil {
		return result, err
	}
	if h.scheduler != nil {
		receipt, err := h.scheduler.Next(ctx, limit, result)
		if err != nil {
			core.LogWithLevel(ctx, h.logger, "error", "webhook dispatch reschedule failed", map[string]any{
				"job_id": msg.JobID,
				"error":  err.Error(),
			})
			return result, err
		}
		core.LogWithLevel(ctx, h.logger, "debug", "webhook dispatch rescheduled", map[string]any{
			"dispatch_id": receipt.DispatchID,
			"selected":    result.Selected,
		})
	}
	return result, nil
}

// ProcessNext dequeues a single delivery and handles it.
func (h *DispatchHandler) ProcessNext(ctx context.Context, dequeuer core.JobDequeuer) (webhooks.BatchResult, error) {
	if dequeuer == nil {
		return webhooks.BatchResult{}, fmt.Errorf("gojob: dequeuer is required")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return webhooks.BatchResult{}, err
	}
	return h.Handle(ctx, delivery)
}

func (h *DispatchHandler) limitFor(msg *core.JobExecutionMessage) int {
	if msg != nil {
		switch value := msg.Parameters["limit"].(type) {
		case int:
			if value > 0 {
				return value
			}
		case int64:
			if value > 0 {
				return int(value)
			}
		case float64:
			if value > 0 {
				return int(value)
			}
		}
	}
	if h.limit > 0 {
		return h.limit
	}
	return 0
}

// LoggingHook reports go-job worker lifecycle events through the relay logger.
type LoggingHook struct {
	Logger core.Logger
}

func (h LoggingHook) OnStart(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, "info", "job started", event)
}

func (h LoggingHook) OnSuccess(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, "info", "job succeeded", event)
}

func (h LoggingHook) OnFailure(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, "error", "job failed", event)
}

func (h LoggingHook) OnRetry(ctx context.Context, event core.JobWorkerEvent) {
	h.log(ctx, "warn", "job retry scheduled", event)
}

func (h LoggingHook) log(ctx context.Context, level string, message string, event core.JobWorkerEvent) {
	fields := map[string]any{
		"attempt":     event.Attempt,
		"delay_ms":    event.Delay.Milliseconds(),
		"duration_ms": event.Duration.Milliseconds(),
	}
	if event.Message != nil {
		fields["job_id"] = event.Message.JobID
	}
	if event.Err != nil {
		fields["error"] = event.Err.Error()
	}
	core.LogWithLevel(ctx, ensureLogger(h.Logger), level, message, fields)
}

func ensureLogger(logger core.Logger) core.Logger {
	if logger == nil {
		return glog.Nop()
	}
	return logger
}

var (
	_ BatchRunner        = (*webhooks.Dispatcher)(nil)
	_ core.JobWorkerHook = LoggingHook{}
)
