package core

import (
	"context"
	"encoding/json"
	"testing"
)

func TestEventEmitter_WritesOneDeliveryPerMatchingSubscription(t *testing.T) {
	subscriptions := newMemorySubscriptionStore(
		Subscription{ID: "sub_a", TenantID: "tenant_1", Enabled: true, EventTypes: []string{EventNoteCreated}, Kind: SubscriberKindGeneric},
		Subscription{ID: "sub_b", TenantID: "tenant_1", Enabled: true, EventTypes: []string{EventNoteCreated, EventMessageCreated}, Kind: SubscriberKindPharmacy},
		Subscription{ID: "sub_c", TenantID: "tenant_1", Enabled: false, EventTypes: []string{EventNoteCreated}},
		Subscription{ID: "sub_d", TenantID: "tenant_1", Enabled: true, EventTypes: []string{EventMessageCreated}},
		Subscription{ID: "sub_e", TenantID: "tenant_2", Enabled: true, EventTypes: []string{EventNoteCreated}},
	)
	deliveries := &memoryDeliveryStore{}
	clock := newFixedClock()
	ids := &sequenceIDs{prefix: "evt"}
	emitter := NewEventEmitter(subscriptions, deliveries)
	emitter.Now = clock.Now
	emitter.NewID = ids.NewID

	result, err := emitter.Emit(context.Background(), "tenant_1", EventNoteCreated, map[string]any{"note_id": "n1"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if result.Deliveries != 2 {
		t.Fatalf("expected 2 deliveries, got %d", result.Deliveries)
	}

	rows := deliveries.snapshot()
	if len(rows) != 2 {
		t.Fatalf("expected 2 stored deliveries, got %d", len(rows))
	}
	seenIDs := map[string]struct{}{}
	for _, row := range rows {
		if row.Status != DeliveryStatusPending || row.AttemptCount != 0 {
			t.Fatalf("expected pending delivery with zero attempts, got %+v", row)
		}
		if !row.NextAttemptAt.Equal(clock.Now()) {
			t.Fatalf("expected next_attempt_at now, got %s", row.NextAttemptAt)
		}
		if row.EventID != result.EventID {
			t.Fatalf("expected shared event id %q, got %q", result.EventID, row.EventID)
		}
		seenIDs[row.ID] = struct{}{}

		var envelope Envelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if envelope.EventID != result.EventID || envelope.EventType != EventNoteCreated || envelope.TenantID != "tenant_1" {
			t.Fatalf("unexpected envelope %+v", envelope)
		}
		if string(envelope.Data) != `{"note_id":"n1"}` {
			t.Fatalf("unexpected envelope data %s", envelope.Data)
		}
	}
	if len(seenIDs) != 2 {
		t.Fatalf("expected distinct delivery ids")
	}
}

func TestEventEmitter_FreshEventIDPerEmission(t *testing.T) {
	subscriptions := newMemorySubscriptionStore(
		Subscription{ID: "sub_a", TenantID: "tenant_1", Enabled: true, EventTypes: []string{EventMessageCreated}},
	)
	emitter := NewEventEmitter(subscriptions, &memoryDeliveryStore{})
	first, err := emitter.Emit(context.Background(), "tenant_1", EventMessageCreated, nil)
	if err != nil {
		t.Fatalf("emit first: %v", err)
	}
	second, err := emitter.Emit(context.Background(), "tenant_1", EventMessageCreated, nil)
	if err != nil {
		t.Fatalf("emit second: %v", err)
	}
	if first.EventID == second.EventID {
		t.Fatalf("expected distinct event ids per emission")
	}
}

func TestEventEmitter_NoMatchesWritesNothing(t *testing.T) {
	deliveries := &memoryDeliveryStore{}
	emitter := NewEventEmitter(newMemorySubscriptionStore(), deliveries)
	result, err := emitter.Emit(context.Background(), "tenant_1", EventNoteCreated, map[string]any{})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if result.Deliveries != 0 || len(deliveries.snapshot()) != 0 {
		t.Fatalf("expected no deliveries, got %+v", result)
	}
}
