package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const JobIDWebhookDispatch = "relay.webhooks.dispatch"

// ToExecutionMessage maps a relay job message to go-job.
func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

// FromExecutionMessage maps a go-job message into the relay contract.
func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

// ToNackOptions maps a relay nack decision onto a go-job disposition.
// An empty disposition means retry. Terminal dispositions carry no delay.
func ToNackOptions(opts core.JobNackOptions) (queue.NackOptions, error) {
	out := queue.NackOptions{
		Disposition: queue.NackDisposition(strings.TrimSpace(string(opts.Disposition))),
		Delay:       opts.Delay,
		Reason:      strings.TrimSpace(opts.Reason),
	}
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition != queue.NackDispositionRetry || out.Delay < 0 {
		out.Delay = 0
	}
	if err := queue.ValidateNackOptions(out); err != nil {
		return queue.NackOptions{}, fmt.Errorf("gojob: %w", err)
	}
	return out, nil
}

// EnqueuerAdapter publishes relay job messages on a go-job queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) (core.JobEnqueueReceipt, error) {
	mapped, err := a.prepare(msg)
	if err != nil {
		return core.JobEnqueueReceipt{}, err
	}
	receipt, err := a.enqueuer.Enqueue(ctx, mapped)
	if err != nil {
		return core.JobEnqueueReceipt{}, err
	}
	return fromReceipt(receipt), nil
}

// EnqueueAfter schedules msg when the queue supports it and returns
// queue.ErrScheduledEnqueueUnsupported otherwise.
func (a *EnqueuerAdapter) EnqueueAfter(ctx context.Context, msg *core.JobExecutionMessage, delay time.Duration) (core.JobEnqueueReceipt, error) {
	mapped, err := a.prepare(msg)
	if err != nil {
		return core.JobEnqueueReceipt{}, err
	}
	scheduled, ok := a.enqueuer.(queue.ScheduledEnqueuer)
	if !ok {
		return core.JobEnqueueReceipt{}, queue.ErrScheduledEnqueueUnsupported
	}
	if delay < 0 {
		delay = 0
	}
	receipt, err := scheduled.EnqueueAfter(ctx, mapped, delay)
	if err != nil {
		return core.JobEnqueueReceipt{}, err
	}
	return fromReceipt(receipt), nil
}

func (a *EnqueuerAdapter) prepare(msg *core.JobExecutionMessage) (*job.ExecutionMessage, error) {
	if a == nil || a.enqueuer == nil {
		return nil, fmt.Errorf("gojob: enqueuer is not configured")
	}
	mapped := ToExecutionMessage(msg)
	if err := queue.ValidateRequiredMessage(mapped); err != nil {
		return nil, err
	}
	return mapped, nil
}

func fromReceipt(receipt queue.EnqueueReceipt) core.JobEnqueueReceipt {
	return core.JobEnqueueReceipt{
		DispatchID: receipt.DispatchID,
		EnqueuedAt: receipt.EnqueuedAt,
	}
}

type DeliveryAdapter struct {
	delivery queue.Delivery
}

func NewDeliveryAdapter(delivery queue.Delivery) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	mapped, err := ToNackOptions(opts)
	if err != nil {
		return err
	}
	return d.delivery.Nack(ctx, mapped)
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery), nil
}

// WorkerHookAdapter forwards go-job worker lifecycle events to a relay hook.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

// NewLoggingWorkerHook returns a go-job worker hook that logs through logger.
func NewLoggingWorkerHook(logger core.Logger) worker.Hook {
	return NewWorkerHookAdapter(LoggingHook{Logger: logger})
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) core.JobWorkerEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	return core.JobWorkerEvent{
		Message:   FromExecutionMessage(message),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobScheduledEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery          = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer          = (*DequeuerAdapter)(nil)
	_ worker.Hook               = (*WorkerHookAdapter)(nil)
)
