package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/webhooks"
)

type NoteService interface {
	CreateOrderNote(ctx context.Context, req core.CreateOrderNoteRequest) (core.LedgerResult[core.Note], error)
	CreateMemberNote(ctx context.Context, req core.CreateMemberNoteRequest) (core.LedgerResult[core.Note], error)
	CreateNoteReply(ctx context.Context, req core.CreateNoteReplyRequest) (core.LedgerResult[core.NoteReply], error)
}

type MessageService interface {
	CreateMessage(ctx context.Context, req core.CreateMessageRequest) (core.LedgerResult[core.Message], error)
}

type LinkageService interface {
	LinkOrder(ctx context.Context, req core.LinkOrderRequest) (core.LedgerResult[core.Order], error)
	LinkMember(ctx context.Context, req core.LinkMemberRequest) (core.LedgerResult[core.Member], error)
}

type OrderStatusService interface {
	TransitionOrderStatus(
		ctx context.Context,
		req core.TransitionOrderStatusRequest,
	) (core.LedgerResult[core.TransitionResult], error)
}

type SubscriptionService interface {
	UpsertSubscription(ctx context.Context, in core.UpsertSubscriptionInput) (core.Subscription, error)
	SetSubscriptionEnabled(ctx context.Context, tenantID string, id string, enabled bool) error
}

type EventService interface {
	Emit(ctx context.Context, tenantID string, eventType string, data any) (core.EmitResult, error)
}

// MutatingService is the write surface of *core.Service.
type MutatingService interface {
	NoteService
	MessageService
	LinkageService
	OrderStatusService
	SubscriptionService
	EventService
}

type BatchRunner interface {
	RunBatch(ctx context.Context, limit int) (webhooks.BatchResult, error)
}

type CreateOrderNoteCommand struct {
	service NoteService
}

func NewCreateOrderNoteCommand(service NoteService) *CreateOrderNoteCommand {
	return &CreateOrderNoteCommand{service: service}
}

func (c *CreateOrderNoteCommand) Execute(ctx context.Context, msg CreateOrderNoteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: note service is required")
	}
	out, err := c.service.CreateOrderNote(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateMemberNoteCommand struct {
	service NoteService
}

func NewCreateMemberNoteCommand(service NoteService) *CreateMemberNoteCommand {
	return &CreateMemberNoteCommand{service: service}
}

func (c *CreateMemberNoteCommand) Execute(ctx context.Context, msg CreateMemberNoteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: note service is required")
	}
	out, err := c.service.CreateMemberNote(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateNoteReplyCommand struct {
	service NoteService
}

func NewCreateNoteReplyCommand(service NoteService) *CreateNoteReplyCommand {
	return &CreateNoteReplyCommand{service: service}
}

func (c *CreateNoteReplyCommand) Execute(ctx context.Context, msg CreateNoteReplyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: note service is required")
	}
	out, err := c.service.CreateNoteReply(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateMessageCommand struct {
	service MessageService
}

func NewCreateMessageCommand(service MessageService) *CreateMessageCommand {
	return &CreateMessageCommand{service: service}
}

func (c *CreateMessageCommand) Execute(ctx context.Context, msg CreateMessageMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: message service is required")
	}
	out, err := c.service.CreateMessage(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type LinkOrderCommand struct {
	service LinkageService
}

func NewLinkOrderCommand(service LinkageService) *LinkOrderCommand {
	return &LinkOrderCommand{service: service}
}

func (c *LinkOrderCommand) Execute(ctx context.Context, msg LinkOrderMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: linkage service is required")
	}
	out, err := c.service.LinkOrder(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type LinkMemberCommand struct {
	service LinkageService
}

func NewLinkMemberCommand(service LinkageService) *LinkMemberCommand {
	return &LinkMemberCommand{service: service}
}

func (c *LinkMemberCommand) Execute(ctx context.Context, msg LinkMemberMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: linkage service is required")
	}
	out, err := c.service.LinkMember(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TransitionOrderStatusCommand struct {
	service OrderStatusService
}

func NewTransitionOrderStatusCommand(service OrderStatusService) *TransitionOrderStatusCommand {
	return &TransitionOrderStatusCommand{service: service}
}

func (c *TransitionOrderStatusCommand) Execute(ctx context.Context, msg TransitionOrderStatusMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: order status service is required")
	}
	out, err := c.service.TransitionOrderStatus(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpsertSubscriptionCommand struct {
	service SubscriptionService
}

func NewUpsertSubscriptionCommand(service SubscriptionService) *UpsertSubscriptionCommand {
	return &UpsertSubscriptionCommand{service: service}
}

func (c *UpsertSubscriptionCommand) Execute(ctx context.Context, msg UpsertSubscriptionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscription service is required")
	}
	out, err := c.service.UpsertSubscription(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetSubscriptionEnabledCommand struct {
	service SubscriptionService
}

func NewSetSubscriptionEnabledCommand(service SubscriptionService) *SetSubscriptionEnabledCommand {
	return &SetSubscriptionEnabledCommand{service: service}
}

func (c *SetSubscriptionEnabledCommand) Execute(ctx context.Context, msg SetSubscriptionEnabledMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscription service is required")
	}
	return c.service.SetSubscriptionEnabled(ctx, msg.TenantID, msg.SubscriptionID, msg.Enabled)
}

type EmitEventCommand struct {
	service EventService
}

func NewEmitEventCommand(service EventService) *EmitEventCommand {
	return &EmitEventCommand{service: service}
}

func (c *EmitEventCommand) Execute(ctx context.Context, msg EmitEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: event service is required")
	}
	out, err := c.service.Emit(ctx, msg.TenantID, msg.EventType, msg.Data)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ProcessWebhooksCommand struct {
	runner BatchRunner
}

func NewProcessWebhooksCommand(runner BatchRunner) *ProcessWebhooksCommand {
	return &ProcessWebhooksCommand{runner: runner}
}

func (c *ProcessWebhooksCommand) Execute(ctx context.Context, msg ProcessWebhooksMessage) error {
	if c == nil || c.runner == nil {
		return commandDependencyError("command: webhook dispatcher is required")
	}
	limit := msg.Limit
	if limit == 0 {
		limit = DefaultProcessWebhooksLimit
	}
	batch, err := c.runner.RunBatch(ctx, limit)
	if err != nil {
		return err
	}
	storeResult(ctx, ProcessWebhooksResult{Processed: batch.Processed})
	storeResult(ctx, batch)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
