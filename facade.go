package relay

import (
	"fmt"

	relaycommand "github.com/goliatone/go-relay/command"
	relayquery "github.com/goliatone/go-relay/query"
)

type CommandQueryService interface {
	relaycommand.MutatingService
	relayquery.NoteReader
	relayquery.MessageReader
	relayquery.DeliveryReader
	relayquery.SubscriptionReader
}

type Commands struct {
	CreateOrderNote        *relaycommand.CreateOrderNoteCommand
	CreateMemberNote       *relaycommand.CreateMemberNoteCommand
	CreateNoteReply        *relaycommand.CreateNoteReplyCommand
	CreateMessage          *relaycommand.CreateMessageCommand
	LinkOrder              *relaycommand.LinkOrderCommand
	LinkMember             *relaycommand.LinkMemberCommand
	TransitionOrderStatus  *relaycommand.TransitionOrderStatusCommand
	UpsertSubscription     *relaycommand.UpsertSubscriptionCommand
	SetSubscriptionEnabled *relaycommand.SetSubscriptionEnabledCommand
	EmitEvent              *relaycommand.EmitEventCommand
	// ProcessWebhooks is nil unless the facade was given a batch runner.
	ProcessWebhooks *relaycommand.ProcessWebhooksCommand
}

type Queries struct {
	ListOrderNotes  *relayquery.ListOrderNotesQuery
	ListMemberNotes *relayquery.ListMemberNotesQuery
	ListMessages    *relayquery.ListMessagesQuery
	ListDeliveries  *relayquery.ListDeliveriesQuery
	GetSubscription *relayquery.GetSubscriptionQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	batchRunner relaycommand.BatchRunner
}

// WithBatchRunner enables the ProcessWebhooks command, usually with a
// *webhooks.Dispatcher.
func WithBatchRunner(runner relaycommand.BatchRunner) FacadeOption {
	return func(options *facadeOptions) {
		options.batchRunner = runner
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("relay: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	runner := cfg.batchRunner
	if runner == nil {
		if candidate, ok := service.(relaycommand.BatchRunner); ok {
			runner = candidate
		}
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		CreateOrderNote:        relaycommand.NewCreateOrderNoteCommand(service),
		CreateMemberNote:       relaycommand.NewCreateMemberNoteCommand(service),
		CreateNoteReply:        relaycommand.NewCreateNoteReplyCommand(service),
		CreateMessage:          relaycommand.NewCreateMessageCommand(service),
		LinkOrder:              relaycommand.NewLinkOrderCommand(service),
		LinkMember:             relaycommand.NewLinkMemberCommand(service),
		TransitionOrderStatus:  relaycommand.NewTransitionOrderStatusCommand(service),
		UpsertSubscription:     relaycommand.NewUpsertSubscriptionCommand(service),
		SetSubscriptionEnabled: relaycommand.NewSetSubscriptionEnabledCommand(service),
		EmitEvent:              relaycommand.NewEmitEventCommand(service),
	}
	if runner != nil {
		facade.commands.ProcessWebhooks = relaycommand.NewProcessWebhooksCommand(runner)
	}
	facade.queries = Queries{
		ListOrderNotes:  relayquery.NewListOrderNotesQuery(service),
		ListMemberNotes: relayquery.NewListMemberNotesQuery(service),
		ListMessages:    relayquery.NewListMessagesQuery(service),
		ListDeliveries:  relayquery.NewListDeliveriesQuery(service),
		GetSubscription: relayquery.NewGetSubscriptionQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
