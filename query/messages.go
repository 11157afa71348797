package query

import (
	"strings"

	"github.com/goliatone/go-relay/core"
)

const (
	TypeListOrderNotes  = "relay.query.order_notes.list"
	TypeListMemberNotes = "relay.query.member_notes.list"
	TypeListMessages    = "relay.query.messages.list"
	TypeListDeliveries  = "relay.query.deliveries.list"
	TypeGetSubscription = "relay.query.subscription.get"
)

type ListOrderNotesMessage struct {
	TenantID string
	OrderID  int64
	Limit    int
}

func (ListOrderNotesMessage) Type() string { return TypeListOrderNotes }

func (m ListOrderNotesMessage) Validate() error {
	if err := validateTenant(m.TenantID); err != nil {
		return err
	}
	if m.OrderID <= 0 {
		return queryValidationError("order_id", "order id must be positive")
	}
	return validateLimit(m.Limit)
}

type ListMemberNotesMessage struct {
	TenantID string
	MemberID int64
	Limit    int
}

func (ListMemberNotesMessage) Type() string { return TypeListMemberNotes }

func (m ListMemberNotesMessage) Validate() error {
	if err := validateTenant(m.TenantID); err != nil {
		return err
	}
	if m.MemberID <= 0 {
		return queryValidationError("member_id", "member id must be positive")
	}
	return validateLimit(m.Limit)
}

type ListMessagesMessage struct {
	Request core.ListMessagesRequest
}

func (ListMessagesMessage) Type() string { return TypeListMessages }

func (m ListMessagesMessage) Validate() error {
	if err := validateTenant(m.Request.TenantID); err != nil {
		return err
	}
	if m.Request.MemberID <= 0 {
		return queryValidationError("member_id", "member id must be positive")
	}
	return validateLimit(m.Request.Limit)
}

type ListDeliveriesMessage struct {
	Filter core.DeliveryFilter
}

func (ListDeliveriesMessage) Type() string { return TypeListDeliveries }

func (m ListDeliveriesMessage) Validate() error {
	if err := validateTenant(m.Filter.TenantID); err != nil {
		return err
	}
	if m.Filter.Offset < 0 {
		return queryValidationError("offset", "offset must not be negative")
	}
	return validateLimit(m.Filter.Limit)
}

type GetSubscriptionMessage struct {
	TenantID       string
	SubscriptionID string
}

func (GetSubscriptionMessage) Type() string { return TypeGetSubscription }

func (m GetSubscriptionMessage) Validate() error {
	if err := validateTenant(m.TenantID); err != nil {
		return err
	}
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return queryValidationError("subscription_id", "subscription id is required")
	}
	return nil
}

func validateTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return queryValidationError("tenant_id", "tenant id is required")
	}
	return nil
}

func validateLimit(limit int) error {
	if limit < 0 {
		return queryValidationError("limit", "limit must not be negative")
	}
	return nil
}
