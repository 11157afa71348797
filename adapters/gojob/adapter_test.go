package gojob

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-relay/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestDispatchMessageSurvivesQueueMapping(t *testing.T) {
	original := NewDispatchMessage(25)
	original.IdempotencyKey = " dispatch-tick "
	original.DedupPolicy = string(job.DedupPolicyDrop)

	converted := ToExecutionMessage(original)
	if converted.JobID != JobIDWebhookDispatch || converted.ScriptPath != JobIDWebhookDispatch {
		t.Fatalf("unexpected go-job message %#v", converted)
	}
	if converted.DedupPolicy != job.DedupPolicyDrop {
		t.Fatalf("expected dedup policy to map, got %q", converted.DedupPolicy)
	}

	back := FromExecutionMessage(converted)
	if back.IdempotencyKey != "dispatch-tick" {
		t.Fatalf("expected trimmed idempotency key, got %q", back.IdempotencyKey)
	}
	if back.Parameters["limit"] != 25 {
		t.Fatalf("expected batch limit to survive mapping, got %#v", back.Parameters)
	}

	converted.Parameters["limit"] = 1
	if original.Parameters["limit"] != 25 {
		t.Fatalf("expected parameters to be copied")
	}
}

func TestToNackOptions_MapsRelayDecisionsToDispositions(t *testing.T) {
	cases := []struct {
		name string
		in   core.JobNackOptions
		want queue.NackOptions
	}{
		{
			name: "retry keeps delay",
			in:   core.JobNackOptions{Disposition: core.JobNackRetry, Delay: 2 * time.Second, Reason: " locked "},
			want: queue.NackOptions{Disposition: queue.NackDispositionRetry, Delay: 2 * time.Second, Reason: "locked"},
		},
		{
			name: "empty disposition retries",
			in:   core.JobNackOptions{Delay: time.Second},
			want: queue.NackOptions{Disposition: queue.NackDispositionRetry, Delay: time.Second},
		},
		{
			name: "negative retry delay clamps",
			in:   core.JobNackOptions{Disposition: core.JobNackRetry, Delay: -time.Second},
			want: queue.NackOptions{Disposition: queue.NackDispositionRetry},
		},
		{
			name: "dead letter drops delay",
			in:   core.JobNackOptions{Disposition: core.JobNackDeadLetter, Delay: time.Minute, Reason: "foreign job"},
			want: queue.NackOptions{Disposition: queue.NackDispositionDeadLetter, Reason: "foreign job"},
		},
		{
			name: "failed",
			in:   core.JobNackOptions{Disposition: core.JobNackFailed},
			want: queue.NackOptions{Disposition: queue.NackDispositionFailed},
		},
		{
			name: "canceled",
			in:   core.JobNackOptions{Disposition: core.JobNackCanceled},
			want: queue.NackOptions{Disposition: queue.NackDispositionCanceled},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToNackOptions(tc.in)
			if err != nil {
				t.Fatalf("map nack: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestToNackOptions_RejectsUnknownDisposition(t *testing.T) {
	if _, err := ToNackOptions(core.JobNackOptions{Disposition: "park"}); err == nil {
		t.Fatalf("expected unknown disposition to be rejected")
	}
}

func TestDeliveryAdapter_NackForwardsDisposition(t *testing.T) {
	raw := &stubQueueDelivery{msg: ToExecutionMessage(NewDispatchMessage(0))}
	delivery := NewDeliveryAdapter(raw)

	if err := delivery.Nack(context.Background(), core.JobNackOptions{
		Disposition: core.JobNackRetry,
		Delay:       3 * time.Second,
		Reason:      "database is locked",
	}); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if raw.nackOpts.Disposition != queue.NackDispositionRetry || raw.nackOpts.Delay != 3*time.Second {
		t.Fatalf("unexpected nack options %#v", raw.nackOpts)
	}

	raw.nacks = 0
	if err := delivery.Nack(context.Background(), core.JobNackOptions{Disposition: "park"}); err == nil {
		t.Fatalf("expected invalid disposition error")
	}
	if raw.nacks != 0 {
		t.Fatalf("expected invalid nack not to reach the queue")
	}
}

func TestEnqueuerAdapter_ReturnsReceipt(t *testing.T) {
	enqueuer := &stubQueueEnqueuer{}
	adapter := NewEnqueuerAdapter(enqueuer)

	receipt, err := adapter.Enqueue(context.Background(), NewDispatchMessage(50))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if receipt.DispatchID != "dispatch-1" || receipt.EnqueuedAt.IsZero() {
		t.Fatalf("unexpected receipt %#v", receipt)
	}
	if enqueuer.last == nil || enqueuer.last.Parameters["limit"] != 50 {
		t.Fatalf("expected mapped dispatch message, got %#v", enqueuer.last)
	}

	if _, err := adapter.Enqueue(context.Background(), &core.JobExecutionMessage{}); err == nil {
		t.Fatalf("expected message without job id to be rejected")
	}
	if enqueuer.calls != 1 {
		t.Fatalf("expected invalid message not to reach the queue")
	}
}

func TestEnqueuerAdapter_EnqueueAfterUsesScheduledQueue(t *testing.T) {
	enqueuer := &stubScheduledEnqueuer{}
	adapter := NewEnqueuerAdapter(enqueuer)

	if _, err := adapter.EnqueueAfter(context.Background(), NewDispatchMessage(0), 4*time.Second); err != nil {
		t.Fatalf("enqueue after: %v", err)
	}
	if len(enqueuer.delays) != 1 || enqueuer.delays[0] != 4*time.Second {
		t.Fatalf("expected scheduled enqueue with delay, got %#v", enqueuer.delays)
	}

	plain := NewEnqueuerAdapter(&stubQueueEnqueuer{})
	if _, err := plain.EnqueueAfter(context.Background(), NewDispatchMessage(0), time.Second); !errors.Is(err, queue.ErrScheduledEnqueueUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestDequeuerAdapter_WrapsDelivery(t *testing.T) {
	raw := &stubQueueDelivery{msg: ToExecutionMessage(NewDispatchMessage(5))}
	delivery, err := NewDequeuerAdapter(&stubQueueDequeuer{delivery: raw}).Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got := delivery.Message(); got == nil || got.JobID != JobIDWebhookDispatch {
		t.Fatalf("expected dispatch message, got %#v", got)
	}
	if err := delivery.Ack(context.Background()); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !raw.acked {
		t.Fatalf("expected ack on underlying delivery")
	}

	failing := NewDequeuerAdapter(&stubQueueDequeuer{err: errors.New("queue closed")})
	if _, err := failing.Dequeue(context.Background()); err == nil {
		t.Fatalf("expected dequeue error")
	}
}

func TestLoggingWorkerHook_ReportsRetryOfDispatchJob(t *testing.T) {
	logger := &recordingLogger{}
	hook := NewLoggingWorkerHook(logger)

	raw := &stubQueueDelivery{msg: ToExecutionMessage(NewDispatchMessage(0))}
	hook.OnRetry(context.Background(), worker.Event{
		Delivery:  raw,
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("database is locked"),
		StartedAt: time.Now().Add(-time.Second),
		Duration:  250 * time.Millisecond,
	})
	hook.OnSuccess(context.Background(), worker.Event{Message: raw.msg})

	if len(logger.warns) != 1 || logger.warns[0] != "job retry scheduled" {
		t.Fatalf("unexpected warn logs %#v", logger.warns)
	}
	if len(logger.infos) != 1 || logger.infos[0] != "job succeeded" {
		t.Fatalf("unexpected info logs %#v", logger.infos)
	}
}

func TestWorkerHookAdapter_MapsDeliveryMessage(t *testing.T) {
	captured := &capturingHook{}
	adapter := NewWorkerHookAdapter(captured)

	adapter.OnFailure(context.Background(), worker.Event{
		Delivery: &stubQueueDelivery{msg: ToExecutionMessage(NewDispatchMessage(3))},
		Attempt:  4,
		Err:      errors.New("boom"),
	})
	if captured.last.Message == nil || captured.last.Message.JobID != JobIDWebhookDispatch {
		t.Fatalf("expected message from delivery, got %#v", captured.last.Message)
	}
	if captured.last.Attempt != 4 || captured.last.Err == nil {
		t.Fatalf("unexpected event %#v", captured.last)
	}

	var nilAdapter *WorkerHookAdapter
	nilAdapter.OnStart(context.Background(), worker.Event{})
}

type stubQueueEnqueuer struct {
	calls int
	last  *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	s.calls++
	s.last = msg
	return queue.EnqueueReceipt{
		DispatchID: fmt.Sprintf("dispatch-%d", s.calls),
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

type stubScheduledEnqueuer struct {
	immediate []*job.ExecutionMessage
	delayed   []*job.ExecutionMessage
	delays    []time.Duration
}

func (s *stubScheduledEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	s.immediate = append(s.immediate, msg)
	return queue.EnqueueReceipt{DispatchID: "now", EnqueuedAt: time.Now().UTC()}, nil
}

func (s *stubScheduledEnqueuer) EnqueueAt(ctx context.Context, msg *job.ExecutionMessage, at time.Time) (queue.EnqueueReceipt, error) {
	return s.EnqueueAfter(ctx, msg, time.Until(at))
}

func (s *stubScheduledEnqueuer) EnqueueAfter(_ context.Context, msg *job.ExecutionMessage, delay time.Duration) (queue.EnqueueReceipt, error) {
	s.delayed = append(s.delayed, msg)
	s.delays = append(s.delays, delay)
	return queue.EnqueueReceipt{DispatchID: "later", EnqueuedAt: time.Now().UTC()}, nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
	err      error
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nacks    int
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nacks++
	s.nackOpts = opts
	return nil
}

type capturingHook struct {
	last core.JobWorkerEvent
}

func (h *capturingHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (h *capturingHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnRetry(context.Context, core.JobWorkerEvent)   {}
func (h *capturingHook) OnFailure(_ context.Context, event core.JobWorkerEvent) {
	h.last = event
}

var (
	_ queue.ScheduledEnqueuer = (*stubScheduledEnqueuer)(nil)
	_ queue.Delivery          = (*stubQueueDelivery)(nil)
)
