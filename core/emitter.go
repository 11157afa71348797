package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type EmitResult struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	Deliveries int    `json:"deliveries"`
}

// EventEmitter writes one pending delivery per enabled subscription that
// accepts the event type. It never attempts delivery itself.
type EventEmitter struct {
	Subscriptions SubscriptionReader
	Deliveries    DeliveryWriter
	Now           func() time.Time
	NewID         func() string
}

func NewEventEmitter(subscriptions SubscriptionReader, deliveries DeliveryWriter) *EventEmitter {
	return &EventEmitter{
		Subscriptions: subscriptions,
		Deliveries:    deliveries,
		Now:           utcNow,
		NewID:         defaultNewID,
	}
}

func (e *EventEmitter) Emit(ctx context.Context, tenantID string, eventType string, data any) (EmitResult, error) {
	if e == nil || e.Subscriptions == nil || e.Deliveries == nil {
		return EmitResult{}, fmt.Errorf("core: event emitter is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	eventType = strings.TrimSpace(eventType)
	if tenantID == "" {
		return EmitResult{}, fmt.Errorf("core: emit tenant id is required")
	}
	if eventType == "" {
		return EmitResult{}, fmt.Errorf("core: emit event type is required")
	}

	subscriptions, err := e.Subscriptions.ListEnabled(ctx, tenantID)
	if err != nil {
		return EmitResult{}, err
	}
	result := EmitResult{EventID: e.newID(), EventType: eventType}
	matched := make([]Subscription, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		if subscription.Accepts(eventType) {
			matched = append(matched, subscription)
		}
	}
	if len(matched) == 0 {
		return result, nil
	}

	encodedData, err := json.Marshal(data)
	if err != nil {
		return EmitResult{}, fmt.Errorf("core: encode event data: %w", err)
	}
	now := e.now()
	payload, err := json.Marshal(Envelope{
		EventID:    result.EventID,
		EventType:  eventType,
		OccurredAt: now,
		TenantID:   tenantID,
		Data:       encodedData,
	})
	if err != nil {
		return EmitResult{}, fmt.Errorf("core: encode event envelope: %w", err)
	}

	deliveries := make([]Delivery, 0, len(matched))
	for _, subscription := range matched {
		deliveries = append(deliveries, Delivery{
			ID:             e.newID(),
			TenantID:       tenantID,
			SubscriptionID: subscription.ID,
			EventID:        result.EventID,
			EventType:      eventType,
			Payload:        append(json.RawMessage(nil), payload...),
			Status:         DeliveryStatusPending,
			AttemptCount:   0,
			NextAttemptAt:  now,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	if err := e.Deliveries.InsertDeliveries(ctx, deliveries); err != nil {
		return EmitResult{}, err
	}
	result.Deliveries = len(deliveries)
	return result, nil
}

func (e *EventEmitter) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now().UTC()
	}
	return utcNow()
}

func (e *EventEmitter) newID() string {
	if e != nil && e.NewID != nil {
		return e.NewID()
	}
	return defaultNewID()
}
