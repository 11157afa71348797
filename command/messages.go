package command

import (
	"strings"

	"github.com/goliatone/go-relay/core"
)

const (
	TypeCreateOrderNote        = "relay.command.order_note.create"
	TypeCreateMemberNote       = "relay.command.member_note.create"
	TypeCreateNoteReply        = "relay.command.note_reply.create"
	TypeCreateMessage          = "relay.command.message.create"
	TypeLinkOrder              = "relay.command.order.link"
	TypeLinkMember             = "relay.command.member.link"
	TypeTransitionOrderStatus  = "relay.command.order_status.transition"
	TypeUpsertSubscription     = "relay.command.subscription.upsert"
	TypeSetSubscriptionEnabled = "relay.command.subscription.set_enabled"
	TypeEmitEvent              = "relay.command.event.emit"
	TypeProcessWebhooks        = "relay.command.webhooks.process"
)

type CreateOrderNoteMessage struct {
	Request core.CreateOrderNoteRequest
}

func (CreateOrderNoteMessage) Type() string { return TypeCreateOrderNote }

func (m CreateOrderNoteMessage) Validate() error {
	if err := validateTenant(m.Request.TenantID); err != nil {
		return err
	}
	if m.Request.OrderID <= 0 {
		return commandValidationError("order_id", "order id must be positive")
	}
	return validateNoteInput(m.Request.NoteInput)
}

type CreateMemberNoteMessage struct {
	Request core.CreateMemberNoteRequest
}

func (CreateMemberNoteMessage) Type() string { return TypeCreateMemberNote }

func (m CreateMemberNoteMessage) Validate() error {
	if err := validateTenant(m.Request.TenantID); err != nil {
		return err
	}
	if m.Request.MemberID <= 0 {
		return commandValidationError("member_id", "member id must be positive")
	}
	return validateNoteInput(m.Request.NoteInput)
}

type CreateNoteReplyMessage struct {
	Request core.CreateNoteReplyRequest
}

func (CreateNoteReplyMessage) Type() string { return TypeCreateNoteReply }

func (m CreateNoteReplyMessage) Validate() error {
	if err := validateTenant(m.Request.TenantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.NoteRef) == "" {
		return commandValidationError("note_id", "note id is required")
	}
	if strings.TrimSpace(m.Request.Body) == "" {
		return commandValidationError("body", "body is required")
	}
	return nil
}

type CreateMessageMessage struct {
	Request core.CreateMessageRequest
}

func (CreateMessageMessage) Type() string { return TypeCreateMessage }

func (m CreateMessageMessage) Validate() error {
	if err := validateTenant(m.Request.TenantID); err != nil {
		return err
	}
	if m.Request.MemberID <= 0 {
		return commandValidationError("member_id", "member id must be positive")
	}
	if strings.TrimSpace(m.Request.Body) == "" {
		return commandValidationError("body", "body is required")
	}
	return nil
}

type LinkOrderMessage struct {
	Request core.LinkOrderRequest
}

func (LinkOrderMessage) Type() string { return TypeLinkOrder }

func (m LinkOrderMessage) Validate() error {
	if err := validateTenant(m.Request.TenantID); err != nil {
		return err
	}
	if m.Request.OrderID <= 0 {
		return commandValidationError("order_id", "order id must be positive")
	}
	if m.Request.MemberID <= 0 {
		return commandValidationError("member_id", "member id must be positive")
	}
	return nil
}

type LinkMemberMessage struct {
	Request core.LinkMemberRequest
}

func (LinkMemberMessage) Type() string { return TypeLinkMember }

func (m LinkMemberMessage) Validate() error {
	if err := validateTenant(m.Request.TenantID); err != nil {
		return err
	}
	if m.Request.MemberID <= 0 {
		return commandValidationError("member_id", "member id must be positive")
	}
	return nil
}

type TransitionOrderStatusMessage struct {
	Request core.TransitionOrderStatusRequest
}

func (TransitionOrderStatusMessage) Type() string { return TypeTransitionOrderStatus }

func (m TransitionOrderStatusMessage) Validate() error {
	if err := validateTenant(m.Request.TenantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.OrderNumber) == "" {
		return commandValidationError("order_number", "order number is required")
	}
	if strings.TrimSpace(m.Request.Target) == "" {
		return commandValidationError("target_status", "target status is required")
	}
	return nil
}

type UpsertSubscriptionMessage struct {
	Input core.UpsertSubscriptionInput
}

func (UpsertSubscriptionMessage) Type() string { return TypeUpsertSubscription }

func (m UpsertSubscriptionMessage) Validate() error {
	if err := validateTenant(m.Input.TenantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.Input.URL) == "" {
		return commandValidationError("url", "url is required")
	}
	if len(m.Input.EventTypes) == 0 {
		return commandValidationError("event_types", "at least one event type is required")
	}
	return nil
}

type SetSubscriptionEnabledMessage struct {
	TenantID       string
	SubscriptionID string
	Enabled        bool
}

func (SetSubscriptionEnabledMessage) Type() string { return TypeSetSubscriptionEnabled }

func (m SetSubscriptionEnabledMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return commandValidationError("subscription_id", "subscription id is required")
	}
	return nil
}

type EmitEventMessage struct {
	TenantID  string
	EventType string
	Data      any
}

func (EmitEventMessage) Type() string { return TypeEmitEvent }

func (m EmitEventMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.EventType) == "" {
		return commandValidationError("event_type", "event type is required")
	}
	return nil
}

const DefaultProcessWebhooksLimit = 50

// ProcessWebhooksMessage runs one dispatcher batch of at most Limit rows.
type ProcessWebhooksMessage struct {
	Limit int
}

type ProcessWebhooksResult struct {
	Processed int `json:"processed"`
}

func (ProcessWebhooksMessage) Type() string { return TypeProcessWebhooks }

func (m ProcessWebhooksMessage) Validate() error {
	if m.Limit < 0 {
		return commandValidationError("limit", "limit must not be negative")
	}
	return nil
}

func validateTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	return nil
}

func validateNoteInput(in core.NoteInput) error {
	if strings.TrimSpace(string(in.NoteType)) == "" {
		return commandValidationError("note_type", "note type is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return commandValidationError("body", "body is required")
	}
	return nil
}
