package webhooks

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-relay/core"
)

const (
	OutcomeSent      = "sent"
	OutcomeSkipped   = "skipped"
	OutcomeRetry     = "retry"
	OutcomeFailed    = "failed"
	OutcomeContended = "contended"
	OutcomeLeaseLost = "lease_lost"

	maxLastErrorLength = 1000
)

type DispatcherConfig struct {
	MaxAttempts    int
	Lease          time.Duration
	RequestTimeout time.Duration
	BatchSize      int
	Backoff        Schedule
	Pharmacy       core.PharmacyConfig
}

func DefaultDispatcherConfig() DispatcherConfig {
	return ConfigFromCore(core.DefaultConfig())
}

func ConfigFromCore(cfg core.Config) DispatcherConfig {
	return DispatcherConfig{
		MaxAttempts:    cfg.Webhooks.MaxAttempts,
		Lease:          cfg.Webhooks.Lease(),
		RequestTimeout: cfg.Webhooks.RequestTimeout(),
		BatchSize:      cfg.Webhooks.BatchSize,
		Backoff:        ScheduleFromSeconds(cfg.Webhooks.BackoffSeconds),
		Pharmacy:       cfg.Pharmacy,
	}
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	defaults := core.DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.Webhooks.MaxAttempts
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.Webhooks.RequestTimeout()
	}
	if c.Lease <= 0 {
		c.Lease = defaults.Webhooks.Lease()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.Webhooks.BatchSize
	}
	if len(c.Backoff) == 0 {
		c.Backoff = DefaultSchedule()
	}
	if strings.TrimSpace(c.Pharmacy.NoteFilter) == "" {
		c.Pharmacy.NoteFilter = defaults.Pharmacy.NoteFilter
	}
	return c
}

type BatchResult struct {
	Selected  int `json:"selected"`
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Skipped   int `json:"skipped"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	Contended int `json:"contended"`
	LeaseLost int `json:"lease_lost"`
}

// Dispatcher claims due deliveries, sends them through the transform
// registered for the subscriber kind and records each outcome.
type Dispatcher struct {
	store      core.DeliveryStore
	client     core.HTTPPoster
	config     DispatcherConfig
	transforms map[core.SubscriberKind]PayloadTransform
	links      core.LinkageReader
	logger     core.Logger
	metrics    core.MetricsRecorder
	now        func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func WithLogger(logger core.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = recorder
	}
}

func WithLinkageReader(links core.LinkageReader) DispatcherOption {
	return func(d *Dispatcher) {
		d.links = links
	}
}

// WithTransform overrides the payload transform used for kind.
func WithTransform(kind core.SubscriberKind, transform PayloadTransform) DispatcherOption {
	return func(d *Dispatcher) {
		if transform == nil {
			delete(d.transforms, kind)
			return
		}
		d.transforms[kind] = transform
	}
}

func NewDispatcher(
	store core.DeliveryStore,
	client core.HTTPPoster,
	config DispatcherConfig,
	opts ...DispatcherOption,
) (*Dispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("webhooks: delivery store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("webhooks: http client is required")
	}
	config = config.withDefaults()
	if config.Lease <= config.RequestTimeout {
		return nil, fmt.Errorf("webhooks: lease %s must exceed request timeout %s", config.Lease, config.RequestTimeout)
	}
	d := &Dispatcher{
		store:      store,
		client:     client,
		config:     config,
		transforms: map[core.SubscriberKind]PayloadTransform{},
		metrics:    core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(d)
	}
	if _, ok := d.transforms[core.SubscriberKindGeneric]; !ok {
		d.transforms[core.SubscriberKindGeneric] = GenericTransform{}
	}
	if _, ok := d.transforms[core.SubscriberKindPharmacy]; !ok {
		d.transforms[core.SubscriberKindPharmacy] = PharmacyTransform{Links: d.links, Config: config.Pharmacy}
	}
	d.logger = glog.Ensure(d.logger)
	if d.metrics == nil {
		d.metrics = core.NopMetricsRecorder{}
	}
	return d, nil
}

// NewDispatcherFromService builds a dispatcher sharing the service's stores,
// config, clock, logger and metrics.
func NewDispatcherFromService(svc *core.Service, client core.HTTPPoster, opts ...DispatcherOption) (*Dispatcher, error) {
	if svc == nil {
		return nil, fmt.Errorf("webhooks: service is required")
	}
	deps := svc.Dependencies()
	base := []DispatcherOption{
		WithLogger(deps.Logger),
		WithMetricsRecorder(deps.MetricsRecorder),
		WithLinkageReader(NewLinkageReader(deps.OrderStore, deps.NoteStore)),
	}
	if deps.Now != nil {
		base = append(base, WithClock(deps.Now))
	}
	return NewDispatcher(deps.DeliveryStore, client, ConfigFromCore(svc.Config()), append(base, opts...)...)
}

func (d *Dispatcher) Config() DispatcherConfig {
	if d == nil {
		return DispatcherConfig{}
	}
	return d.config
}

// RunBatch processes up to limit due deliveries. Failures of individual rows
// are recorded on the rows; only a failed backlog scan aborts the batch.
// Storage errors while finalizing single rows are joined into the returned
// error after the batch completes.
func (d *Dispatcher) RunBatch(ctx context.Context, limit int) (BatchResult, error) {
	if d == nil || d.store == nil {
		return BatchResult{}, fmt.Errorf("webhooks: dispatcher is not configured")
	}
	startedAt := time.Now()
	if limit <= 0 {
		limit = d.config.BatchSize
	}

	ids, err := d.store.ListDue(ctx, d.clock(), limit)
	if err != nil {
		d.logBatch(ctx, startedAt, BatchResult{}, err)
		return BatchResult{}, err
	}

	result := BatchResult{Selected: len(ids)}
	var batchErr error
	for _, id := range ids {
		if ctxErr := ctx.Err(); ctxErr != nil {
			batchErr = joinErrors(batchErr, ctxErr)
			break
		}
		outcome, rowErr := d.processOne(ctx, id)
		switch outcome {
		case OutcomeContended:
			result.Contended++
		case OutcomeLeaseLost:
			result.LeaseLost++
		case OutcomeSent:
			result.Processed++
			result.Sent++
		case OutcomeSkipped:
			result.Processed++
			result.Skipped++
		case OutcomeRetry:
			result.Processed++
			result.Retried++
		case OutcomeFailed:
			result.Processed++
			result.Failed++
		}
		if rowErr != nil {
			batchErr = joinErrors(batchErr, fmt.Errorf("webhooks: delivery %s: %w", id, rowErr))
		}
	}

	d.logBatch(ctx, startedAt, result, batchErr)
	return result, batchErr
}

// processOne returns the recorded outcome and any storage error. A row that
// was claimed but whose outcome could not be written keeps its lease and is
// reclaimed after expiry. An outcome rejected because another worker took
// over the row is reported as lease_lost and leaves the row untouched.
func (d *Dispatcher) processOne(ctx context.Context, id string) (string, error) {
	claimedAt := d.clock()
	leaseUntil := claimedAt.Add(d.config.Lease)
	won, err := d.store.Claim(ctx, id, claimedAt, leaseUntil)
	if err != nil {
		return "", err
	}
	if !won {
		return OutcomeContended, nil
	}
	claimed, err := d.store.GetClaimed(ctx, id)
	if err != nil {
		return "", err
	}

	skipped, attemptErr := d.attempt(ctx, claimed)
	attemptedAt := d.clock()
	outcome := d.outcomeFor(claimed.Delivery, attemptedAt, attemptErr)
	outcome.LeaseUntil = &leaseUntil
	label := outcomeLabel(outcome, skipped)

	if err := d.store.RecordOutcome(ctx, outcome); err != nil {
		if core.IsLeaseLost(err) {
			core.LogWithLevel(ctx, d.logger, "warn", "webhook delivery lease lost", map[string]any{
				"delivery_id": id,
				"outcome":     label,
				"lease_until": leaseUntil,
			})
			return OutcomeLeaseLost, nil
		}
		return label, err
	}
	d.observeDelivery(ctx, claimed, outcome, label, attemptErr)
	return label, nil
}

func (d *Dispatcher) attempt(ctx context.Context, claimed core.ClaimedDelivery) (bool, error) {
	if strings.TrimSpace(claimed.Subscription.ID) == "" {
		return false, core.LinkageMissingError("webhook subscription not found", map[string]any{
			"delivery_id":     claimed.Delivery.ID,
			"subscription_id": claimed.Delivery.SubscriptionID,
		})
	}
	kind := claimed.Subscription.Kind
	if kind == "" {
		kind = core.SubscriberKindGeneric
	}
	transform, ok := d.transforms[kind]
	if !ok || transform == nil {
		return false, fmt.Errorf("webhooks: no payload transform for subscriber kind %q", kind)
	}
	built, err := transform.Build(ctx, claimed, d.clock())
	if err != nil {
		return false, err
	}
	if built.Skip {
		return true, nil
	}

	req := built.Request
	if req.Timeout <= 0 || req.Timeout > d.config.RequestTimeout {
		req.Timeout = d.config.RequestTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	resp, err := d.client.Post(reqCtx, req)
	if err != nil {
		if core.IsUpstreamFailure(err) {
			return false, err
		}
		return false, core.UpstreamError(err, "webhooks: delivery request failed", map[string]any{
			"delivery_id": claimed.Delivery.ID,
		})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, core.UpstreamError(nil, fmt.Sprintf("HTTP %d", resp.StatusCode), map[string]any{
			"delivery_id": claimed.Delivery.ID,
			"status_code": resp.StatusCode,
		})
	}
	return false, nil
}

func (d *Dispatcher) outcomeFor(delivery core.Delivery, at time.Time, attemptErr error) core.DeliveryOutcome {
	outcome := core.DeliveryOutcome{
		DeliveryID:  delivery.ID,
		AttemptedAt: at,
	}
	if attemptErr == nil {
		outcome.Status = core.DeliveryStatusSent
		return outcome
	}
	outcome.LastError = truncateError(failureReason(attemptErr))
	attempts := delivery.AttemptCount + 1
	if attempts >= d.config.MaxAttempts {
		outcome.Status = core.DeliveryStatusFailed
		return outcome
	}
	next := at.Add(d.config.Backoff.Delay(attempts))
	outcome.Status = core.DeliveryStatusPending
	outcome.NextAttemptAt = &next
	return outcome
}

func outcomeLabel(outcome core.DeliveryOutcome, skipped bool) string {
	switch outcome.Status {
	case core.DeliveryStatusSent:
		if skipped {
			return OutcomeSkipped
		}
		return OutcomeSent
	case core.DeliveryStatusFailed:
		return OutcomeFailed
	default:
		return OutcomeRetry
	}
}

func (d *Dispatcher) observeDelivery(
	ctx context.Context,
	claimed core.ClaimedDelivery,
	outcome core.DeliveryOutcome,
	label string,
	attemptErr error,
) {
	kind := string(claimed.Subscription.Kind)
	d.metrics.IncCounter(ctx, core.MetricDeliveryOutcomeTotal, 1, map[string]string{
		"outcome":         label,
		"subscriber_kind": kind,
		"event_type":      claimed.Delivery.EventType,
	})
	if attemptErr == nil {
		core.LogWithLevel(ctx, d.logger, "debug", "webhook delivery "+label, map[string]any{
			"delivery_id":     claimed.Delivery.ID,
			"tenant_id":       claimed.Delivery.TenantID,
			"subscriber_kind": kind,
		})
		return
	}
	fields := map[string]any{
		"delivery_id":     claimed.Delivery.ID,
		"tenant_id":       claimed.Delivery.TenantID,
		"subscriber_kind": kind,
		"attempt":         claimed.Delivery.AttemptCount + 1,
		"error":           outcome.LastError,
		"outcome":         label,
	}
	if outcome.NextAttemptAt != nil {
		fields["next_attempt_at"] = outcome.NextAttemptAt.Format(time.RFC3339)
	}
	core.LogWithLevel(ctx, d.logger, "warn", "webhook delivery failed", fields)
}

func (d *Dispatcher) logBatch(ctx context.Context, startedAt time.Time, result BatchResult, err error) {
	fields := map[string]any{
		"operation":   "webhooks.run_batch",
		"selected":    result.Selected,
		"processed":   result.Processed,
		"sent":        result.Sent,
		"skipped":     result.Skipped,
		"retried":     result.Retried,
		"failed":      result.Failed,
		"contended":   result.Contended,
		"lease_lost":  result.LeaseLost,
		"duration_ms": time.Since(startedAt).Milliseconds(),
	}
	if err != nil {
		fields["status"] = "failure"
		fields["error"] = err.Error()
		core.LogWithLevel(ctx, d.logger, "error", "webhooks.run_batch failed", fields)
		return
	}
	fields["status"] = "success"
	level := "info"
	if result.Selected == 0 {
		level = "debug"
	}
	core.LogWithLevel(ctx, d.logger, level, "webhooks.run_batch succeeded", fields)
}

func (d *Dispatcher) clock() time.Time {
	if d != nil && d.now != nil {
		return d.now().UTC()
	}
	return time.Now().UTC()
}

// failureReason drops the category prefix rich errors carry in Error().
func failureReason(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return err.Error()
	}
	if rich.Source != nil {
		return rich.Message + ": " + rich.Source.Error()
	}
	return rich.Message
}

func truncateError(message string) string {
	message = strings.TrimSpace(message)
	if len(message) <= maxLastErrorLength {
		return message
	}
	return message[:maxLastErrorLength]
}

func joinErrors(existing error, next error) error {
	if existing == nil {
		return next
	}
	if next == nil {
		return existing
	}
	return fmt.Errorf("%w; %v", existing, next)
}
