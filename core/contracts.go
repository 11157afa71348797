package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// UnitOfWork runs fn inside a storage transaction. Calls made while a
// transaction is already bound to ctx join it instead of opening a new one.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type IdempotencyStore interface {
	Find(ctx context.Context, key IdempotencyKey) (IdempotencyRecord, bool, error)
	// Insert must fail with an error wrapping ErrIdempotencyKeyTaken when the
	// (tenant_id, endpoint, idempotency_key) triple already exists.
	Insert(ctx context.Context, record IdempotencyRecord) error
}

type SubscriptionReader interface {
	ListEnabled(ctx context.Context, tenantID string) ([]Subscription, error)
}

type SubscriptionStore interface {
	SubscriptionReader
	Upsert(ctx context.Context, in UpsertSubscriptionInput) (Subscription, error)
	SetEnabled(ctx context.Context, tenantID string, id string, enabled bool) error
	Get(ctx context.Context, tenantID string, id string) (Subscription, error)
}

type DeliveryWriter interface {
	InsertDeliveries(ctx context.Context, deliveries []Delivery) error
}

type DeliveryStore interface {
	DeliveryWriter
	// ListDue returns ids of pending deliveries due at now whose lease is
	// absent or expired, oldest next_attempt_at first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]string, error)
	// Claim sets locked_until to until only if the row is still pending and
	// unlocked at now. It reports false when another worker won the row.
	Claim(ctx context.Context, id string, now time.Time, until time.Time) (bool, error)
	// GetClaimed returns the delivery joined with its subscription. A
	// missing subscription yields a zero Subscription, not an error.
	GetClaimed(ctx context.Context, id string) (ClaimedDelivery, error)
	// RecordOutcome finalizes a pending row. It returns a LeaseLostError when
	// the row is no longer pending or no longer holds outcome.LeaseUntil.
	RecordOutcome(ctx context.Context, outcome DeliveryOutcome) error
	Get(ctx context.Context, id string) (Delivery, error)
	List(ctx context.Context, filter DeliveryFilter) (DeliveryPage, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, tenantID string, orderID int64) (Order, error)
}

type OrderStore interface {
	OrderReader
	// LockByRef loads the order addressed by its pharmacy reference holding a
	// row lock for the rest of the surrounding transaction.
	LockByRef(ctx context.Context, tenantID string, orderRef string) (Order, error)
	UpdateStatus(ctx context.Context, tenantID string, orderID int64, status OrderStatus, at time.Time) error
	UpsertLink(ctx context.Context, order Order) (Order, error)
	UpsertWorkQueue(ctx context.Context, item WorkQueueItem) error
	UpsertAssessmentStatus(ctx context.Context, status AssessmentStatus) error
	GetWorkQueueItem(ctx context.Context, tenantID string, orderID int64) (WorkQueueItem, error)
	GetAssessmentStatus(ctx context.Context, tenantID string, orderID int64) (AssessmentStatus, error)
}

type MemberStore interface {
	Ensure(ctx context.Context, tenantID string, memberID int64) error
	UpsertLink(ctx context.Context, member Member) (Member, error)
	GetMember(ctx context.Context, tenantID string, memberID int64) (Member, error)
}

type NoteReader interface {
	GetNote(ctx context.Context, tenantID string, noteID string) (Note, error)
}

type NoteStore interface {
	NoteReader
	InsertNote(ctx context.Context, note Note) error
	// ResolveRef finds a note by external reference or id, preferring the
	// external reference match.
	ResolveRef(ctx context.Context, tenantID string, ref string) (Note, error)
	InsertReply(ctx context.Context, reply NoteReply) error
	ListByOrder(ctx context.Context, tenantID string, orderID int64, limit int) ([]Note, error)
	ListByMember(ctx context.Context, tenantID string, memberID int64, limit int) ([]Note, error)
	ListReplies(ctx context.Context, tenantID string, noteIDs []string) ([]NoteReply, error)
}

type MessageStore interface {
	InsertMessage(ctx context.Context, message Message) error
	ListByMember(ctx context.Context, tenantID string, memberID int64, channel string, limit int) ([]Message, error)
}

// LinkageReader exposes the denormalized lookups payload transforms need.
type LinkageReader interface {
	OrderReader
	NoteReader
}

type StoreProvider interface {
	IdempotencyStore() IdempotencyStore
	SubscriptionStore() SubscriptionStore
	DeliveryStore() DeliveryStore
	OrderStore() OrderStore
	MemberStore() MemberStore
	NoteStore() NoteStore
	MessageStore() MessageStore
	UnitOfWork() UnitOfWork
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type OutboundRequest struct {
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

type OutboundResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

type HTTPPoster interface {
	Post(ctx context.Context, req OutboundRequest) (OutboundResponse, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

// JobNackDisposition names what the queue does with a nacked job.
type JobNackDisposition string

const (
	JobNackRetry      JobNackDisposition = "retry"
	JobNackDeadLetter JobNackDisposition = "dead_letter"
	JobNackFailed     JobNackDisposition = "failed"
	JobNackCanceled   JobNackDisposition = "canceled"
)

// JobNackOptions carries a nack decision. Delay only applies to retries.
type JobNackOptions struct {
	Disposition JobNackDisposition
	Delay       time.Duration
	Reason      string
}

type JobEnqueueReceipt struct {
	DispatchID string
	EnqueuedAt time.Time
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) (JobEnqueueReceipt, error)
}

// JobScheduledEnqueuer publishes a job that becomes visible after delay.
type JobScheduledEnqueuer interface {
	JobEnqueuer
	EnqueueAfter(ctx context.Context, msg *JobExecutionMessage, delay time.Duration) (JobEnqueueReceipt, error)
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
