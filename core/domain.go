package core

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

type SubscriberKind string

const (
	SubscriberKindGeneric  SubscriberKind = "generic"
	SubscriberKindPharmacy SubscriberKind = "pharmacy"
)

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusSent || s == DeliveryStatusFailed
}

const (
	EventNoteCreated        = "note.created"
	EventNoteReplyCreated   = "note.reply.created"
	EventMessageCreated     = "message.created"
	EventOrderLinkUpdated   = "order.link.updated"
	EventMemberLinkUpdated  = "member.link.updated"
	EventOrderStatusChanged = "order.status.changed"
)

type NoteScope string

const (
	NoteScopeOrder   NoteScope = "order"
	NoteScopePatient NoteScope = "patient"
)

type NoteType string

const (
	NoteTypeAdmin    NoteType = "admin_note"
	NoteTypeClinical NoteType = "clinical_note"
)

type NoteStatus string

const (
	NoteStatusOpen     NoteStatus = "open"
	NoteStatusResolved NoteStatus = "resolved"
	NoteStatusArchived NoteStatus = "archived"
)

type MessageChannel string

const (
	MessageChannelAdminPatient      MessageChannel = "admin_patient"
	MessageChannelPharmacistPatient MessageChannel = "pharmacist_patient"
)

type ActorRole string

const (
	ActorRoleAdmin      ActorRole = "admin"
	ActorRolePharmacist ActorRole = "pharmacist"
	ActorRolePatient    ActorRole = "patient"
	ActorRoleSystem     ActorRole = "system"
)

type Actor struct {
	Role        ActorRole `json:"role"`
	UserID      string    `json:"user_id,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
}

// Label returns the most specific human readable name for the actor.
func (a Actor) Label() string {
	for _, candidate := range []string{a.DisplayName, a.UserID, string(a.Role)} {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return ""
}

type IdempotencyKey struct {
	TenantID string
	Endpoint string
	Key      string
}

type IdempotencyRecord struct {
	ID             string
	TenantID       string
	Endpoint       string
	IdempotencyKey string
	RequestHash    string
	ResponseBody   json.RawMessage
	CreatedAt      time.Time
}

func (r IdempotencyRecord) Key() IdempotencyKey {
	return IdempotencyKey{TenantID: r.TenantID, Endpoint: r.Endpoint, Key: r.IdempotencyKey}
}

type Subscription struct {
	ID         string
	TenantID   string
	URL        string
	Secret     string
	EventTypes []string
	Enabled    bool
	Kind       SubscriberKind
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s Subscription) Accepts(eventType string) bool {
	if !s.Enabled {
		return false
	}
	return slices.Contains(s.EventTypes, strings.TrimSpace(eventType))
}

type UpsertSubscriptionInput struct {
	ID         string
	TenantID   string
	URL        string
	Secret     string
	EventTypes []string
	Enabled    bool
	Kind       SubscriberKind
}

type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	TenantID   string          `json:"tenant_id"`
	Data       json.RawMessage `json:"data"`
}

type Delivery struct {
	ID             string          `json:"delivery_id"`
	TenantID       string          `json:"tenant_id"`
	SubscriptionID string          `json:"subscription_id"`
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	Status         DeliveryStatus  `json:"status"`
	AttemptCount   int             `json:"attempt_count"`
	LastAttemptAt  *time.Time      `json:"last_attempt_at,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	NextAttemptAt  time.Time       `json:"next_attempt_at"`
	LockedUntil    *time.Time      `json:"locked_until,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ClaimedDelivery is a delivery row read back after a successful claim,
// joined with the subscription it targets.
type ClaimedDelivery struct {
	Delivery     Delivery
	Subscription Subscription
}

type DeliveryOutcome struct {
	DeliveryID    string
	Status        DeliveryStatus
	AttemptedAt   time.Time
	LastError     string
	NextAttemptAt *time.Time
	// LeaseUntil is the locked_until value written by the claim. When set,
	// the outcome only applies while the row still carries that lease.
	LeaseUntil *time.Time
}

type DeliveryFilter struct {
	TenantID string
	Status   DeliveryStatus
	Limit    int
	Offset   int
}

type DeliveryPage struct {
	Items []Delivery
	Total int
}

type Member struct {
	TenantID           string    `json:"tenant_id"`
	MemberID           int64     `json:"member_id"`
	Email              string    `json:"email,omitempty"`
	FirstName          string    `json:"first_name,omitempty"`
	LastName           string    `json:"last_name,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	PharmacyPatientRef string    `json:"pharmacy_patient_ref,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Order struct {
	TenantID         string      `json:"tenant_id"`
	OrderID          int64       `json:"order_id"`
	MemberID         int64       `json:"member_id"`
	PharmacyOrderRef string      `json:"pharmacy_order_ref,omitempty"`
	Status           OrderStatus `json:"status"`
	StatusChangedAt  *time.Time  `json:"status_changed_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type Note struct {
	ID              string     `json:"note_id"`
	TenantID        string     `json:"tenant_id"`
	Scope           NoteScope  `json:"scope"`
	MemberID        int64      `json:"member_id"`
	OrderID         *int64     `json:"order_id,omitempty"`
	NoteType        NoteType   `json:"note_type"`
	Title           string     `json:"title,omitempty"`
	Body            string     `json:"body"`
	Status          NoteStatus `json:"status"`
	CreatedBy       Actor      `json:"created_by"`
	ExternalNoteRef string     `json:"external_note_ref,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type NoteReply struct {
	ID               string    `json:"note_reply_id"`
	TenantID         string    `json:"tenant_id"`
	NoteID           string    `json:"note_id"`
	Body             string    `json:"body"`
	CreatedBy        Actor     `json:"created_by"`
	ExternalReplyRef string    `json:"external_reply_ref,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type NoteThread struct {
	Note    Note        `json:"note"`
	Replies []NoteReply `json:"replies"`
}

type Message struct {
	ID                 string         `json:"message_id"`
	TenantID           string         `json:"tenant_id"`
	MemberID           int64          `json:"member_id"`
	Channel            MessageChannel `json:"channel"`
	Body               string         `json:"body"`
	Sender             Actor          `json:"sender"`
	ExternalMessageRef string         `json:"external_message_ref,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

const (
	WorkQueueStatusQueued        = "queued"
	AssessmentStatusRefunded     = "refunded"
	MessageChannelFilterAll      = "all"
	defaultOrderNoteListLimit    = 200
	defaultMessageListLimit      = 500
	defaultDeliveryListPageLimit = 50
)

type WorkQueueItem struct {
	TenantID string
	OrderID  int64
	Status   string
	QueuedAt time.Time
}

type AssessmentStatus struct {
	TenantID  string
	OrderID   int64
	Status    string
	Reason    string
	UpdatedAt time.Time
}
