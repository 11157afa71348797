package relay

import "github.com/goliatone/go-relay/core"

type Config = core.Config

type WebhooksConfig = core.WebhooksConfig

type PharmacyConfig = core.PharmacyConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type UnitOfWork = core.UnitOfWork
type IdempotencyStore = core.IdempotencyStore
type SubscriptionStore = core.SubscriptionStore
type DeliveryStore = core.DeliveryStore
type OrderStore = core.OrderStore
type MemberStore = core.MemberStore
type NoteStore = core.NoteStore
type MessageStore = core.MessageStore
type HTTPPoster = core.HTTPPoster

type CreateOrderNoteRequest = core.CreateOrderNoteRequest
type CreateMemberNoteRequest = core.CreateMemberNoteRequest
type CreateNoteReplyRequest = core.CreateNoteReplyRequest
type CreateMessageRequest = core.CreateMessageRequest

type LinkOrderRequest = core.LinkOrderRequest
type LinkMemberRequest = core.LinkMemberRequest

type TransitionOrderStatusRequest = core.TransitionOrderStatusRequest

type UpsertSubscriptionInput = core.UpsertSubscriptionInput

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithUnitOfWork        = core.WithUnitOfWork
	WithIdempotencyStore  = core.WithIdempotencyStore
	WithSubscriptionStore = core.WithSubscriptionStore
	WithDeliveryStore     = core.WithDeliveryStore
	WithOrderStore        = core.WithOrderStore
	WithMemberStore       = core.WithMemberStore
	WithNoteStore         = core.WithNoteStore
	WithMessageStore      = core.WithMessageStore
	WithClock             = core.WithClock
	WithIDGenerator       = core.WithIDGenerator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
