package query

import (
	"context"

	"github.com/goliatone/go-relay/core"
)

type NoteReader interface {
	ListOrderNotes(ctx context.Context, req core.ListNotesRequest) ([]core.NoteThread, error)
	ListMemberNotes(ctx context.Context, req core.ListNotesRequest) ([]core.NoteThread, error)
}

type MessageReader interface {
	ListMessages(ctx context.Context, req core.ListMessagesRequest) ([]core.Message, error)
}

type DeliveryReader interface {
	ListDeliveries(ctx context.Context, filter core.DeliveryFilter) (core.DeliveryPage, error)
}

type SubscriptionReader interface {
	GetSubscription(ctx context.Context, tenantID string, id string) (core.Subscription, error)
}

type ListOrderNotesQuery struct {
	reader NoteReader
}

func NewListOrderNotesQuery(reader NoteReader) *ListOrderNotesQuery {
	return &ListOrderNotesQuery{reader: reader}
}

func (q *ListOrderNotesQuery) Query(ctx context.Context, msg ListOrderNotesMessage) ([]core.NoteThread, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: note reader is required")
	}
	return q.reader.ListOrderNotes(ctx, core.ListNotesRequest{
		TenantID: msg.TenantID,
		OrderID:  msg.OrderID,
		Limit:    msg.Limit,
	})
}

type ListMemberNotesQuery struct {
	reader NoteReader
}

func NewListMemberNotesQuery(reader NoteReader) *ListMemberNotesQuery {
	return &ListMemberNotesQuery{reader: reader}
}

func (q *ListMemberNotesQuery) Query(ctx context.Context, msg ListMemberNotesMessage) ([]core.NoteThread, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: note reader is required")
	}
	return q.reader.ListMemberNotes(ctx, core.ListNotesRequest{
		TenantID: msg.TenantID,
		MemberID: msg.MemberID,
		Limit:    msg.Limit,
	})
}

type ListMessagesQuery struct {
	reader MessageReader
}

func NewListMessagesQuery(reader MessageReader) *ListMessagesQuery {
	return &ListMessagesQuery{reader: reader}
}

func (q *ListMessagesQuery) Query(ctx context.Context, msg ListMessagesMessage) ([]core.Message, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: message reader is required")
	}
	return q.reader.ListMessages(ctx, msg.Request)
}

type ListDeliveriesQuery struct {
	reader DeliveryReader
}

func NewListDeliveriesQuery(reader DeliveryReader) *ListDeliveriesQuery {
	return &ListDeliveriesQuery{reader: reader}
}

func (q *ListDeliveriesQuery) Query(ctx context.Context, msg ListDeliveriesMessage) (core.DeliveryPage, error) {
	if q == nil || q.reader == nil {
		return core.DeliveryPage{}, queryDependencyError("query: delivery reader is required")
	}
	return q.reader.ListDeliveries(ctx, msg.Filter)
}

type GetSubscriptionQuery struct {
	reader SubscriptionReader
}

func NewGetSubscriptionQuery(reader SubscriptionReader) *GetSubscriptionQuery {
	return &GetSubscriptionQuery{reader: reader}
}

func (q *GetSubscriptionQuery) Query(ctx context.Context, msg GetSubscriptionMessage) (core.Subscription, error) {
	if q == nil || q.reader == nil {
		return core.Subscription{}, queryDependencyError("query: subscription reader is required")
	}
	return q.reader.GetSubscription(ctx, msg.TenantID, msg.SubscriptionID)
}
