package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"
)

// BuildResult is either an outbound request or a skip signal. Skipped
// deliveries are recorded as sent without any network call.
type BuildResult struct {
	Skip    bool
	Reason  string
	Request core.OutboundRequest
}

type PayloadTransform interface {
	Build(ctx context.Context, claimed core.ClaimedDelivery, at time.Time) (BuildResult, error)
}

type PayloadTransformFunc func(ctx context.Context, claimed core.ClaimedDelivery, at time.Time) (BuildResult, error)

func (fn PayloadTransformFunc) Build(ctx context.Context, claimed core.ClaimedDelivery, at time.Time) (BuildResult, error) {
	return fn(ctx, claimed, at)
}

// GenericTransform posts the stored envelope bytes unchanged and signs them
// with the subscription secret.
type GenericTransform struct{}

func (GenericTransform) Build(_ context.Context, claimed core.ClaimedDelivery, at time.Time) (BuildResult, error) {
	target := strings.TrimSpace(claimed.Subscription.URL)
	if target == "" {
		return BuildResult{}, fmt.Errorf("webhooks: subscription %q has no url", claimed.Subscription.ID)
	}
	body := []byte(claimed.Delivery.Payload)
	return BuildResult{
		Request: core.OutboundRequest{
			URL: target,
			Headers: map[string]string{
				"Content-Type":       "application/json",
				HeaderEventID:        claimed.Delivery.EventID,
				HeaderEventType:      claimed.Delivery.EventType,
				HeaderEventTimestamp: at.UTC().Format(time.RFC3339Nano),
				HeaderSignature:      Sign(claimed.Subscription.Secret, body),
			},
			Body: body,
		},
	}, nil
}

type pharmacyNoteEvent struct {
	NoteID  string `json:"note_id"`
	OrderID *int64 `json:"orderID"`
	Scope   string `json:"scope"`
}

type pharmacyNotePayload struct {
	Body   string `json:"body"`
	Type   string `json:"type"`
	Author string `json:"author,omitempty"`
}

var pharmacyNoteTypes = map[core.NoteType]string{
	core.NoteTypeAdmin:    "ADMIN",
	core.NoteTypeClinical: "CLINICAL",
}

// PharmacyTransform forwards order-scoped note.created events to the
// pharmacy notes endpoint under the subscription base url.
type PharmacyTransform struct {
	Links  core.LinkageReader
	Config core.PharmacyConfig
}

func (t PharmacyTransform) Build(ctx context.Context, claimed core.ClaimedDelivery, _ time.Time) (BuildResult, error) {
	if claimed.Delivery.EventType != core.EventNoteCreated {
		return BuildResult{Skip: true, Reason: "event type not forwarded"}, nil
	}
	var envelope core.Envelope
	if err := json.Unmarshal(claimed.Delivery.Payload, &envelope); err != nil {
		return BuildResult{}, fmt.Errorf("webhooks: decode delivery envelope: %w", err)
	}
	var event pharmacyNoteEvent
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			return BuildResult{}, fmt.Errorf("webhooks: decode note event: %w", err)
		}
	}
	if event.Scope != string(core.NoteScopeOrder) {
		return BuildResult{Skip: true, Reason: "note is not order scoped"}, nil
	}
	if t.Links == nil {
		return BuildResult{}, fmt.Errorf("webhooks: pharmacy linkage reader is not configured")
	}

	tenantID := claimed.Delivery.TenantID
	metadata := map[string]any{"delivery_id": claimed.Delivery.ID, "note_id": event.NoteID}
	if strings.TrimSpace(event.NoteID) == "" || event.OrderID == nil {
		return BuildResult{}, core.LinkageMissingError("pharmacy note event requires note_id and orderID", metadata)
	}
	metadata["order_id"] = *event.OrderID

	order, err := t.Links.GetOrder(ctx, tenantID, *event.OrderID)
	if err != nil {
		if core.IsNotFound(err) {
			return BuildResult{}, core.LinkageMissingError("order not found for pharmacy note", metadata)
		}
		return BuildResult{}, err
	}
	orderRef := strings.TrimSpace(order.PharmacyOrderRef)
	if orderRef == "" {
		return BuildResult{}, core.LinkageMissingError(
			fmt.Sprintf("missing pharmacy_order_ref for order %d", order.OrderID),
			metadata,
		)
	}
	note, err := t.Links.GetNote(ctx, tenantID, event.NoteID)
	if err != nil {
		if core.IsNotFound(err) {
			return BuildResult{}, core.LinkageMissingError("note not found for pharmacy delivery", metadata)
		}
		return BuildResult{}, err
	}
	if t.Config.OnlyAdminNotes() && note.NoteType != core.NoteTypeAdmin {
		return BuildResult{Skip: true, Reason: "non-admin note filtered"}, nil
	}

	noteType, ok := pharmacyNoteTypes[note.NoteType]
	if !ok {
		noteType = pharmacyNoteTypes[core.NoteTypeAdmin]
	}
	body, err := json.Marshal(pharmacyNotePayload{
		Body:   note.Body,
		Type:   noteType,
		Author: note.CreatedBy.Label(),
	})
	if err != nil {
		return BuildResult{}, fmt.Errorf("webhooks: encode pharmacy note: %w", err)
	}
	apiKey := strings.TrimSpace(t.Config.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(claimed.Subscription.Secret)
	}
	return BuildResult{
		Request: core.OutboundRequest{
			URL: pharmacyNotesURL(claimed.Subscription.URL, orderRef),
			Headers: map[string]string{
				"Content-Type": "application/json",
				"x-api-key":    apiKey,
			},
			Body: body,
		},
	}, nil
}

func pharmacyNotesURL(base string, orderRef string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	return base + "/api/orders/" + url.PathEscape(orderRef) + "/notes"
}

type linkage struct {
	core.OrderReader
	core.NoteReader
}

// NewLinkageReader combines order and note lookups for PharmacyTransform.
func NewLinkageReader(orders core.OrderReader, notes core.NoteReader) core.LinkageReader {
	if orders == nil || notes == nil {
		return nil
	}
	return linkage{OrderReader: orders, NoteReader: notes}
}
