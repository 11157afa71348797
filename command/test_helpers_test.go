package command

import (
	"context"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/webhooks"
)

type stubMutatingService struct {
	createOrderNoteFn        func(context.Context, core.CreateOrderNoteRequest) (core.LedgerResult[core.Note], error)
	createMemberNoteFn       func(context.Context, core.CreateMemberNoteRequest) (core.LedgerResult[core.Note], error)
	createNoteReplyFn        func(context.Context, core.CreateNoteReplyRequest) (core.LedgerResult[core.NoteReply], error)
	createMessageFn          func(context.Context, core.CreateMessageRequest) (core.LedgerResult[core.Message], error)
	linkOrderFn              func(context.Context, core.LinkOrderRequest) (core.LedgerResult[core.Order], error)
	linkMemberFn             func(context.Context, core.LinkMemberRequest) (core.LedgerResult[core.Member], error)
	transitionOrderStatusFn  func(context.Context, core.TransitionOrderStatusRequest) (core.LedgerResult[core.TransitionResult], error)
	upsertSubscriptionFn     func(context.Context, core.UpsertSubscriptionInput) (core.Subscription, error)
	setSubscriptionEnabledFn func(context.Context, string, string, bool) error
	emitFn                   func(context.Context, string, string, any) (core.EmitResult, error)
}

func (s stubMutatingService) CreateOrderNote(
	ctx context.Context,
	req core.CreateOrderNoteRequest,
) (core.LedgerResult[core.Note], error) {
	if s.createOrderNoteFn == nil {
		return core.LedgerResult[core.Note]{}, nil
	}
	return s.createOrderNoteFn(ctx, req)
}

func (s stubMutatingService) CreateMemberNote(
	ctx context.Context,
	req core.CreateMemberNoteRequest,
) (core.LedgerResult[core.Note], error) {
	if s.createMemberNoteFn == nil {
		return core.LedgerResult[core.Note]{}, nil
	}
	return s.createMemberNoteFn(ctx, req)
}

func (s stubMutatingService) CreateNoteReply(
	ctx context.Context,
	req core.CreateNoteReplyRequest,
) (core.LedgerResult[core.NoteReply], error) {
	if s.createNoteReplyFn == nil {
		return core.LedgerResult[core.NoteReply]{}, nil
	}
	return s.createNoteReplyFn(ctx, req)
}

func (s stubMutatingService) CreateMessage(
	ctx context.Context,
	req core.CreateMessageRequest,
) (core.LedgerResult[core.Message], error) {
	if s.createMessageFn == nil {
		return core.LedgerResult[core.Message]{}, nil
	}
	return s.createMessageFn(ctx, req)
}

func (s stubMutatingService) LinkOrder(
	ctx context.Context,
	req core.LinkOrderRequest,
) (core.LedgerResult[core.Order], error) {
	if s.linkOrderFn == nil {
		return core.LedgerResult[core.Order]{}, nil
	}
	return s.linkOrderFn(ctx, req)
}

func (s stubMutatingService) LinkMember(
	ctx context.Context,
	req core.LinkMemberRequest,
) (core.LedgerResult[core.Member], error) {
	if s.linkMemberFn == nil {
		return core.LedgerResult[core.Member]{}, nil
	}
	return s.linkMemberFn(ctx, req)
}

func (s stubMutatingService) TransitionOrderStatus(
	ctx context.Context,
	req core.TransitionOrderStatusRequest,
) (core.LedgerResult[core.TransitionResult], error) {
	if s.transitionOrderStatusFn == nil {
		return core.LedgerResult[core.TransitionResult]{}, nil
	}
	return s.transitionOrderStatusFn(ctx, req)
}

func (s stubMutatingService) UpsertSubscription(
	ctx context.Context,
	in core.UpsertSubscriptionInput,
) (core.Subscription, error) {
	if s.upsertSubscriptionFn == nil {
		return core.Subscription{}, nil
	}
	return s.upsertSubscriptionFn(ctx, in)
}

func (s stubMutatingService) SetSubscriptionEnabled(ctx context.Context, tenantID string, id string, enabled bool) error {
	if s.setSubscriptionEnabledFn == nil {
		return nil
	}
	return s.setSubscriptionEnabledFn(ctx, tenantID, id, enabled)
}

func (s stubMutatingService) Emit(ctx context.Context, tenantID string, eventType string, data any) (core.EmitResult, error) {
	if s.emitFn == nil {
		return core.EmitResult{}, nil
	}
	return s.emitFn(ctx, tenantID, eventType, data)
}

type stubBatchRunner struct {
	runFn func(context.Context, int) (webhooks.BatchResult, error)
}

func (s stubBatchRunner) RunBatch(ctx context.Context, limit int) (webhooks.BatchResult, error) {
	if s.runFn == nil {
		return webhooks.BatchResult{}, nil
	}
	return s.runFn(ctx, limit)
}
