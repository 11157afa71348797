package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ListNotesRequest struct {
	TenantID string
	OrderID  int64
	MemberID int64
	Limit    int
}

type ListMessagesRequest struct {
	TenantID string
	MemberID int64
	// Channel filters by channel; empty or "all" returns every channel.
	Channel string
	Limit   int
}

func (s *Service) ListOrderNotes(ctx context.Context, req ListNotesRequest) (threads []NoteThread, err error) {
	startedAt := time.Now().UTC()
	req.TenantID = strings.TrimSpace(req.TenantID)
	fields := map[string]any{"tenant_id": req.TenantID, "order_id": req.OrderID}
	defer func() {
		fields["count"] = len(threads)
		s.observeOperation(ctx, startedAt, "list_order_notes", err, fields)
	}()

	if err = validateTenant(req.TenantID); err == nil {
		err = requirePositive("order_id", req.OrderID)
	}
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	if s.noteStore == nil {
		err = s.mapError(fmt.Errorf("core: note store is required"))
		return nil, err
	}
	notes, err := s.noteStore.ListByOrder(ctx, req.TenantID, req.OrderID, clampLimit(req.Limit, defaultOrderNoteListLimit))
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	threads, err = s.attachReplies(ctx, req.TenantID, notes)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return threads, nil
}

func (s *Service) ListMemberNotes(ctx context.Context, req ListNotesRequest) (threads []NoteThread, err error) {
	startedAt := time.Now().UTC()
	req.TenantID = strings.TrimSpace(req.TenantID)
	fields := map[string]any{"tenant_id": req.TenantID, "member_id": req.MemberID}
	defer func() {
		fields["count"] = len(threads)
		s.observeOperation(ctx, startedAt, "list_member_notes", err, fields)
	}()

	if err = validateTenant(req.TenantID); err == nil {
		err = requirePositive("member_id", req.MemberID)
	}
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	if s.noteStore == nil {
		err = s.mapError(fmt.Errorf("core: note store is required"))
		return nil, err
	}
	notes, err := s.noteStore.ListByMember(ctx, req.TenantID, req.MemberID, clampLimit(req.Limit, defaultOrderNoteListLimit))
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	threads, err = s.attachReplies(ctx, req.TenantID, notes)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return threads, nil
}

func (s *Service) ListMessages(ctx context.Context, req ListMessagesRequest) (messages []Message, err error) {
	startedAt := time.Now().UTC()
	req.TenantID = strings.TrimSpace(req.TenantID)
	channel := strings.TrimSpace(req.Channel)
	if channel == "" {
		channel = MessageChannelFilterAll
	}
	fields := map[string]any{"tenant_id": req.TenantID, "member_id": req.MemberID, "channel": channel}
	defer func() {
		fields["count"] = len(messages)
		s.observeOperation(ctx, startedAt, "list_messages", err, fields)
	}()

	if err = validateTenant(req.TenantID); err == nil {
		err = requirePositive("member_id", req.MemberID)
	}
	if err == nil {
		switch MessageChannel(channel) {
		case MessageChannelAdminPatient, MessageChannelPharmacistPatient, MessageChannelFilterAll:
		default:
			err = ValidationError("channel", "channel must be admin_patient, pharmacist_patient or all")
		}
	}
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	if s.messageStore == nil {
		err = s.mapError(fmt.Errorf("core: message store is required"))
		return nil, err
	}
	messages, err = s.messageStore.ListByMember(ctx, req.TenantID, req.MemberID, channel, clampLimit(req.Limit, defaultMessageListLimit))
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return messages, nil
}

func (s *Service) ListDeliveries(ctx context.Context, filter DeliveryFilter) (page DeliveryPage, err error) {
	startedAt := time.Now().UTC()
	filter.TenantID = strings.TrimSpace(filter.TenantID)
	fields := map[string]any{"tenant_id": filter.TenantID, "delivery_status": string(filter.Status)}
	defer func() {
		fields["count"] = len(page.Items)
		s.observeOperation(ctx, startedAt, "list_deliveries", err, fields)
	}()

	if err = validateTenant(filter.TenantID); err != nil {
		err = s.mapError(err)
		return DeliveryPage{}, err
	}
	switch filter.Status {
	case "", DeliveryStatusPending, DeliveryStatusSent, DeliveryStatusFailed:
	default:
		err = s.mapError(ValidationError("status", "status must be pending, sent or failed"))
		return DeliveryPage{}, err
	}
	if s.deliveryStore == nil {
		err = s.mapError(fmt.Errorf("core: delivery store is required"))
		return DeliveryPage{}, err
	}
	filter.Limit = clampLimit(filter.Limit, defaultDeliveryListPageLimit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	page, err = s.deliveryStore.List(ctx, filter)
	if err != nil {
		err = s.mapError(err)
		return DeliveryPage{}, err
	}
	return page, nil
}

func (s *Service) attachReplies(ctx context.Context, tenantID string, notes []Note) ([]NoteThread, error) {
	threads := make([]NoteThread, 0, len(notes))
	if len(notes) == 0 {
		return threads, nil
	}
	ids := make([]string, 0, len(notes))
	for _, note := range notes {
		ids = append(ids, note.ID)
	}
	replies, err := s.noteStore.ListReplies(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	byNote := make(map[string][]NoteReply, len(notes))
	for _, reply := range replies {
		byNote[reply.NoteID] = append(byNote[reply.NoteID], reply)
	}
	for _, note := range notes {
		items := byNote[note.ID]
		if items == nil {
			items = []NoteReply{}
		}
		threads = append(threads, NoteThread{Note: note, Replies: items})
	}
	return threads, nil
}

func validateTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return ValidationError("tenant_id", "tenant id is required")
	}
	return nil
}

func clampLimit(limit int, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
