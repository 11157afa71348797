package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type idempotencyRecord struct {
	bun.BaseModel `bun:"table:relay_idempotency_keys,alias:rik"`

	ID             string    `bun:"id,pk"`
	TenantID       string    `bun:"tenant_id,notnull"`
	Endpoint       string    `bun:"endpoint,notnull"`
	IdempotencyKey string    `bun:"idempotency_key,notnull"`
	RequestHash    string    `bun:"request_hash,notnull"`
	ResponseBody   string    `bun:"response_body,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type subscriptionRecord struct {
	bun.BaseModel `bun:"table:relay_webhook_subscriptions,alias:rws"`

	ID             string    `bun:"id,pk"`
	TenantID       string    `bun:"tenant_id,notnull"`
	URL            string    `bun:"url,notnull"`
	Secret         string    `bun:"secret,notnull"`
	EventTypes     []string  `bun:"event_types,type:jsonb,notnull"`
	Enabled        bool      `bun:"enabled,notnull"`
	SubscriberKind string    `bun:"subscriber_kind,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deliveryRecord struct {
	bun.BaseModel `bun:"table:relay_webhook_deliveries,alias:rwd"`

	ID             string              `bun:"id,pk"`
	TenantID       string              `bun:"tenant_id,notnull"`
	SubscriptionID string              `bun:"subscription_id,notnull"`
	EventID        string              `bun:"event_id,notnull"`
	EventType      string              `bun:"event_type,notnull"`
	Payload        string              `bun:"payload,notnull"`
	Status         string              `bun:"status,notnull"`
	AttemptCount   int                 `bun:"attempt_count,notnull"`
	LastAttemptAt  *time.Time          `bun:"last_attempt_at,nullzero"`
	LastError      *string             `bun:"last_error"`
	NextAttemptAt  time.Time           `bun:"next_attempt_at,notnull"`
	LockedUntil    *time.Time          `bun:"locked_until,nullzero"`
	CreatedAt      time.Time           `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time           `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	Subscription   *subscriptionRecord `bun:"rel:belongs-to,join:subscription_id=id"`
}

type memberRecord struct {
	bun.BaseModel `bun:"table:relay_members,alias:rm"`

	TenantID           string    `bun:"tenant_id,pk"`
	MemberID           int64     `bun:"member_id,pk"`
	Email              string    `bun:"email,nullzero"`
	FirstName          string    `bun:"first_name,nullzero"`
	LastName           string    `bun:"last_name,nullzero"`
	Phone              string    `bun:"phone,nullzero"`
	PharmacyPatientRef string    `bun:"pharmacy_patient_ref,nullzero"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderRecord struct {
	bun.BaseModel `bun:"table:relay_orders,alias:ro"`

	TenantID         string     `bun:"tenant_id,pk"`
	OrderID          int64      `bun:"order_id,pk"`
	MemberID         int64      `bun:"member_id,notnull"`
	PharmacyOrderRef string     `bun:"pharmacy_order_ref,nullzero"`
	Status           string     `bun:"status,nullzero"`
	StatusChangedAt  *time.Time `bun:"status_changed_at,nullzero"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type workQueueRecord struct {
	bun.BaseModel `bun:"table:relay_order_work_queue,alias:rowq"`

	TenantID  string    `bun:"tenant_id,pk"`
	OrderID   int64     `bun:"order_id,pk"`
	Status    string    `bun:"status,notnull"`
	QueuedAt  time.Time `bun:"queued_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type assessmentStatusRecord struct {
	bun.BaseModel `bun:"table:relay_order_assessment_status,alias:roas"`

	TenantID  string    `bun:"tenant_id,pk"`
	OrderID   int64     `bun:"order_id,pk"`
	Status    string    `bun:"status,notnull"`
	Reason    string    `bun:"reason,nullzero"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type noteRecord struct {
	bun.BaseModel `bun:"table:relay_notes,alias:rn"`

	ID                   string    `bun:"id,pk"`
	TenantID             string    `bun:"tenant_id,notnull"`
	Scope                string    `bun:"scope,notnull"`
	MemberID             int64     `bun:"member_id,notnull"`
	OrderID              *int64    `bun:"order_id"`
	NoteType             string    `bun:"note_type,notnull"`
	Title                string    `bun:"title,nullzero"`
	Body                 string    `bun:"body,notnull"`
	Status               string    `bun:"status,notnull"`
	CreatedByRole        string    `bun:"created_by_role,notnull"`
	CreatedByUserID      string    `bun:"created_by_user_id,nullzero"`
	CreatedByDisplayName string    `bun:"created_by_display_name,nullzero"`
	ExternalNoteRef      string    `bun:"external_note_ref,nullzero"`
	CreatedAt            time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type noteReplyRecord struct {
	bun.BaseModel `bun:"table:relay_note_replies,alias:rnr"`

	ID                   string    `bun:"id,pk"`
	TenantID             string    `bun:"tenant_id,notnull"`
	NoteID               string    `bun:"note_id,notnull"`
	Body                 string    `bun:"body,notnull"`
	CreatedByRole        string    `bun:"created_by_role,notnull"`
	CreatedByUserID      string    `bun:"created_by_user_id,nullzero"`
	CreatedByDisplayName string    `bun:"created_by_display_name,nullzero"`
	ExternalReplyRef     string    `bun:"external_reply_ref,nullzero"`
	CreatedAt            time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type messageRecord struct {
	bun.BaseModel `bun:"table:relay_messages,alias:rmsg"`

	ID                string    `bun:"id,pk"`
	TenantID          string    `bun:"tenant_id,notnull"`
	MemberID          int64     `bun:"member_id,notnull"`
	Channel           string    `bun:"channel,notnull"`
	Body              string    `bun:"body,notnull"`
	SenderRole        string    `bun:"sender_role,notnull"`
	SenderUserID      string    `bun:"sender_user_id,nullzero"`
	SenderDisplayName string    `bun:"sender_display_name,nullzero"`
	ExternalRef       string    `bun:"external_message_ref,nullzero"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
