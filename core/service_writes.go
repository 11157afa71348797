package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	EndpointCreateOrderNote       = "/v1/orders/:order_id/notes"
	EndpointCreateMemberNote      = "/v1/members/:member_id/notes"
	EndpointCreateNoteReply       = "/v1/notes/:note_id/replies"
	EndpointCreateMessage         = "/v1/members/:member_id/messages"
	EndpointLinkOrder             = "/v1/orders/:order_id/link"
	EndpointLinkMember            = "/v1/members/:member_id/link"
	EndpointTransitionOrderStatus = "/v1/orders/:order_number/status"
)

type NoteInput struct {
	NoteType        NoteType   `json:"note_type"`
	Title           string     `json:"title,omitempty"`
	Body            string     `json:"body"`
	Status          NoteStatus `json:"status,omitempty"`
	CreatedBy       Actor      `json:"created_by"`
	ExternalNoteRef string     `json:"external_note_ref,omitempty"`
}

type CreateOrderNoteRequest struct {
	TenantID       string `json:"-"`
	IdempotencyKey string `json:"-"`
	OrderID        int64  `json:"order_id"`
	NoteInput
}

type CreateMemberNoteRequest struct {
	TenantID       string `json:"-"`
	IdempotencyKey string `json:"-"`
	MemberID       int64  `json:"member_id"`
	NoteInput
}

type CreateNoteReplyRequest struct {
	TenantID         string `json:"-"`
	IdempotencyKey   string `json:"-"`
	NoteRef          string `json:"note_id"`
	Body             string `json:"body"`
	CreatedBy        Actor  `json:"created_by"`
	ExternalReplyRef string `json:"external_reply_ref,omitempty"`
}

type CreateMessageRequest struct {
	TenantID           string         `json:"-"`
	IdempotencyKey     string         `json:"-"`
	MemberID           int64          `json:"member_id"`
	Channel            MessageChannel `json:"channel"`
	Body               string         `json:"body"`
	Sender             Actor          `json:"sender"`
	ExternalMessageRef string         `json:"external_message_ref,omitempty"`
}

// LinkOrderRequest leaves the stored reference and status untouched when
// the corresponding field is empty.
type LinkOrderRequest struct {
	TenantID         string `json:"-"`
	IdempotencyKey   string `json:"-"`
	OrderID          int64  `json:"order_id"`
	MemberID         int64  `json:"member_id"`
	PharmacyOrderRef string `json:"pharmacy_order_ref,omitempty"`
	Status           string `json:"status,omitempty"`
}

type LinkMemberRequest struct {
	TenantID           string `json:"-"`
	IdempotencyKey     string `json:"-"`
	MemberID           int64  `json:"member_id"`
	Email              string `json:"email,omitempty"`
	FirstName          string `json:"first_name,omitempty"`
	LastName           string `json:"last_name,omitempty"`
	Phone              string `json:"phone,omitempty"`
	PharmacyPatientRef string `json:"pharmacy_patient_ref,omitempty"`
}

type TransitionOrderStatusRequest struct {
	IdempotencyKey string `json:"-"`
	TransitionRequest
}

func (s *Service) CreateOrderNote(ctx context.Context, req CreateOrderNoteRequest) (LedgerResult[Note], error) {
	req.TenantID = strings.TrimSpace(req.TenantID)
	input, err := req.NoteInput.normalized()
	if err == nil {
		err = requirePositive("order_id", req.OrderID)
	}
	return runLedgered(ctx, s, "create_order_note", LedgerRequest{
		TenantID:       req.TenantID,
		Endpoint:       EndpointCreateOrderNote,
		IdempotencyKey: req.IdempotencyKey,
		Body:           req,
	}, err, func(ctx context.Context) (Note, error) {
		if s.orderStore == nil || s.noteStore == nil {
			return Note{}, fmt.Errorf("core: order and note stores are required")
		}
		order, err := s.orderStore.GetOrder(ctx, req.TenantID, req.OrderID)
		if err != nil {
			if IsNotFound(err) {
				return Note{}, NotFoundError("order not found", map[string]any{"order_id": req.OrderID})
			}
			return Note{}, err
		}
		orderID := order.OrderID
		note := input.toNote(s.nextID(), req.TenantID, NoteScopeOrder, order.MemberID, &orderID, s.clock())
		if err := s.noteStore.InsertNote(ctx, note); err != nil {
			return Note{}, err
		}
		if err := s.emit(ctx, req.TenantID, EventNoteCreated, map[string]any{
			"note_id":  note.ID,
			"memberID": note.MemberID,
			"orderID":  orderID,
			"scope":    string(NoteScopeOrder),
		}); err != nil {
			return Note{}, err
		}
		return note, nil
	})
}

func (s *Service) CreateMemberNote(ctx context.Context, req CreateMemberNoteRequest) (LedgerResult[Note], error) {
	req.TenantID = strings.TrimSpace(req.TenantID)
	input, err := req.NoteInput.normalized()
	if err == nil {
		err = requirePositive("member_id", req.MemberID)
	}
	return runLedgered(ctx, s, "create_member_note", LedgerRequest{
		TenantID:       req.TenantID,
		Endpoint:       EndpointCreateMemberNote,
		IdempotencyKey: req.IdempotencyKey,
		Body:           req,
	}, err, func(ctx context.Context) (Note, error) {
		if s.memberStore == nil || s.noteStore == nil {
			return Note{}, fmt.Errorf("core: member and note stores are required")
		}
		if err := s.memberStore.Ensure(ctx, req.TenantID, req.MemberID); err != nil {
			return Note{}, err
		}
		note := input.toNote(s.nextID(), req.TenantID, NoteScopePatient, req.MemberID, nil, s.clock())
		if err := s.noteStore.InsertNote(ctx, note); err != nil {
			return Note{}, err
		}
		if err := s.emit(ctx, req.TenantID, EventNoteCreated, map[string]any{
			"note_id":  note.ID,
			"memberID": note.MemberID,
			"scope":    string(NoteScopePatient),
		}); err != nil {
			return Note{}, err
		}
		return note, nil
	})
}

func (s *Service) CreateNoteReply(ctx context.Context, req CreateNoteReplyRequest) (LedgerResult[NoteReply], error) {
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.NoteRef = strings.TrimSpace(req.NoteRef)
	req.Body = strings.TrimSpace(req.Body)
	var err error
	switch {
	case req.NoteRef == "":
		err = ValidationError("note_id", "note id is required")
	case req.Body == "":
		err = ValidationError("body", "body is required")
	default:
		err = validateActor("created_by", req.CreatedBy)
	}
	return runLedgered(ctx, s, "create_note_reply", LedgerRequest{
		TenantID:       req.TenantID,
		Endpoint:       EndpointCreateNoteReply,
		IdempotencyKey: req.IdempotencyKey,
		Body:           req,
	}, err, func(ctx context.Context) (NoteReply, error) {
		if s.noteStore == nil {
			return NoteReply{}, fmt.Errorf("core: note store is required")
		}
		note, err := s.noteStore.ResolveRef(ctx, req.TenantID, req.NoteRef)
		if err != nil {
			if IsNotFound(err) {
				return NoteReply{}, NotFoundError("note not found", map[string]any{"note_id": req.NoteRef})
			}
			return NoteReply{}, err
		}
		reply := NoteReply{
			ID:               s.nextID(),
			TenantID:         req.TenantID,
			NoteID:           note.ID,
			Body:             req.Body,
			CreatedBy:        req.CreatedBy,
			ExternalReplyRef: strings.TrimSpace(req.ExternalReplyRef),
			CreatedAt:        s.clock(),
		}
		if err := s.noteStore.InsertReply(ctx, reply); err != nil {
			return NoteReply{}, err
		}
		data := map[string]any{
			"note_id":       note.ID,
			"note_reply_id": reply.ID,
			"memberID":      note.MemberID,
			"orderID":       nil,
		}
		if note.OrderID != nil {
			data["orderID"] = *note.OrderID
		}
		if err := s.emit(ctx, req.TenantID, EventNoteReplyCreated, data); err != nil {
			return NoteReply{}, err
		}
		return reply, nil
	})
}

func (s *Service) CreateMessage(ctx context.Context, req CreateMessageRequest) (LedgerResult[Message], error) {
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.Body = strings.TrimSpace(req.Body)
	err := requirePositive("member_id", req.MemberID)
	if err == nil {
		switch req.Channel {
		case MessageChannelAdminPatient, MessageChannelPharmacistPatient:
		default:
			err = ValidationError("channel", "channel must be admin_patient or pharmacist_patient")
		}
	}
	if err == nil && req.Body == "" {
		err = ValidationError("body", "body is required")
	}
	if err == nil {
		err = validateActor("sender", req.Sender)
	}
	return runLedgered(ctx, s, "create_message", LedgerRequest{
		TenantID:       req.TenantID,
		Endpoint:       EndpointCreateMessage,
		IdempotencyKey: req.IdempotencyKey,
		Body:           req,
	}, err, func(ctx context.Context) (Message, error) {
		if s.memberStore == nil || s.messageStore == nil {
			return Message{}, fmt.Errorf("core: member and message stores are required")
		}
		if err := s.memberStore.Ensure(ctx, req.TenantID, req.MemberID); err != nil {
			return Message{}, err
		}
		message := Message{
			ID:                 s.nextID(),
			TenantID:           req.TenantID,
			MemberID:           req.MemberID,
			Channel:            req.Channel,
			Body:               req.Body,
			Sender:             req.Sender,
			ExternalMessageRef: strings.TrimSpace(req.ExternalMessageRef),
			CreatedAt:          s.clock(),
		}
		if err := s.messageStore.InsertMessage(ctx, message); err != nil {
			return Message{}, err
		}
		if err := s.emit(ctx, req.TenantID, EventMessageCreated, map[string]any{
			"message_id": message.ID,
			"memberID":   message.MemberID,
			"channel":    string(message.Channel),
		}); err != nil {
			return Message{}, err
		}
		return message, nil
	})
}

func (s *Service) LinkOrder(ctx context.Context, req LinkOrderRequest) (LedgerResult[Order], error) {
	req.TenantID = strings.TrimSpace(req.TenantID)
	err := requirePositive("order_id", req.OrderID)
	if err == nil {
		err = requirePositive("member_id", req.MemberID)
	}
	status := strings.TrimSpace(req.Status)
	if err == nil && status != "" && !orderStatusPattern.MatchString(status) {
		err = ValidationError("status", "status must be an uppercase status name")
	}
	return runLedgered(ctx, s, "link_order", LedgerRequest{
		TenantID:       req.TenantID,
		Endpoint:       EndpointLinkOrder,
		IdempotencyKey: req.IdempotencyKey,
		Body:           req,
	}, err, func(ctx context.Context) (Order, error) {
		if s.memberStore == nil || s.orderStore == nil {
			return Order{}, fmt.Errorf("core: member and order stores are required")
		}
		if err := s.memberStore.Ensure(ctx, req.TenantID, req.MemberID); err != nil {
			return Order{}, err
		}
		now := s.clock()
		order, err := s.orderStore.UpsertLink(ctx, Order{
			TenantID:         req.TenantID,
			OrderID:          req.OrderID,
			MemberID:         req.MemberID,
			PharmacyOrderRef: strings.TrimSpace(req.PharmacyOrderRef),
			Status:           OrderStatus(status),
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			return Order{}, err
		}
		if err := s.emit(ctx, req.TenantID, EventOrderLinkUpdated, map[string]any{
			"orderID":  order.OrderID,
			"memberID": order.MemberID,
		}); err != nil {
			return Order{}, err
		}
		return order, nil
	})
}

func (s *Service) LinkMember(ctx context.Context, req LinkMemberRequest) (LedgerResult[Member], error) {
	req.TenantID = strings.TrimSpace(req.TenantID)
	err := requirePositive("member_id", req.MemberID)
	return runLedgered(ctx, s, "link_member", LedgerRequest{
		TenantID:       req.TenantID,
		Endpoint:       EndpointLinkMember,
		IdempotencyKey: req.IdempotencyKey,
		Body:           req,
	}, err, func(ctx context.Context) (Member, error) {
		if s.memberStore == nil {
			return Member{}, fmt.Errorf("core: member store is required")
		}
		now := s.clock()
		member, err := s.memberStore.UpsertLink(ctx, Member{
			TenantID:           req.TenantID,
			MemberID:           req.MemberID,
			Email:              strings.TrimSpace(req.Email),
			FirstName:          strings.TrimSpace(req.FirstName),
			LastName:           strings.TrimSpace(req.LastName),
			Phone:              strings.TrimSpace(req.Phone),
			PharmacyPatientRef: strings.TrimSpace(req.PharmacyPatientRef),
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err != nil {
			return Member{}, err
		}
		if err := s.emit(ctx, req.TenantID, EventMemberLinkUpdated, map[string]any{
			"memberID": member.MemberID,
		}); err != nil {
			return Member{}, err
		}
		return member, nil
	})
}

// TransitionOrderStatus runs the status guard and records the transition
// event in the same transaction.
func (s *Service) TransitionOrderStatus(ctx context.Context, req TransitionOrderStatusRequest) (LedgerResult[TransitionResult], error) {
	normalized, _, err := req.TransitionRequest.normalized()
	if err == nil {
		req.TransitionRequest = normalized
	}
	return runLedgered(ctx, s, "transition_order_status", LedgerRequest{
		TenantID:       req.TenantID,
		Endpoint:       EndpointTransitionOrderStatus,
		IdempotencyKey: req.IdempotencyKey,
		Body:           req,
	}, err, func(ctx context.Context) (TransitionResult, error) {
		result, err := s.guard.Transition(ctx, req.TransitionRequest)
		if err != nil {
			return TransitionResult{}, err
		}
		data := map[string]any{
			"orderID":         result.OrderID,
			"order_number":    result.OrderNumber,
			"previous_status": string(result.PreviousStatus),
			"new_status":      string(result.NewStatus),
		}
		if req.Reason != "" {
			data["reason"] = req.Reason
		}
		if err := s.emit(ctx, req.TenantID, EventOrderStatusChanged, data); err != nil {
			return TransitionResult{}, err
		}
		return result, nil
	})
}

// Emit fans an event out to the tenant's subscriptions outside of any
// ledgered write.
func (s *Service) Emit(ctx context.Context, tenantID string, eventType string, data any) (result EmitResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"tenant_id": tenantID, "event_type": eventType}
	defer func() {
		fields["deliveries"] = result.Deliveries
		s.observeOperation(ctx, startedAt, "emit", err, fields)
	}()
	if s == nil || s.emitter == nil {
		err = s.mapError(fmt.Errorf("core: event emitter is not configured"))
		return EmitResult{}, err
	}
	result, err = s.emitter.Emit(ctx, tenantID, eventType, data)
	if err != nil {
		err = s.mapError(err)
		return EmitResult{}, err
	}
	return result, nil
}

func (s *Service) emit(ctx context.Context, tenantID string, eventType string, data any) error {
	if s.emitter == nil {
		return nil
	}
	_, err := s.emitter.Emit(ctx, tenantID, eventType, data)
	return err
}

func runLedgered[T any](
	ctx context.Context,
	s *Service,
	operation string,
	req LedgerRequest,
	validationErr error,
	handler func(ctx context.Context) (T, error),
) (result LedgerResult[T], err error) {
	startedAt := time.Now().UTC()
	req.TenantID = strings.TrimSpace(req.TenantID)
	fields := map[string]any{
		"tenant_id": req.TenantID,
		"endpoint":  req.Endpoint,
	}
	defer func() {
		fields["replayed"] = result.Replayed
		s.observeOperation(ctx, startedAt, operation, err, fields)
	}()

	if s == nil {
		return LedgerResult[T]{}, fmt.Errorf("core: service is not configured")
	}
	if req.TenantID == "" {
		err = s.mapError(ValidationError("tenant_id", "tenant id is required"))
		return LedgerResult[T]{}, err
	}
	if validationErr != nil {
		err = s.mapError(validationErr)
		return LedgerResult[T]{}, err
	}
	result, err = ExecuteIdempotent(ctx, s.ledger, req, handler)
	if err != nil {
		err = s.mapError(err)
		return LedgerResult[T]{}, err
	}
	return result, nil
}

func (in NoteInput) normalized() (NoteInput, error) {
	in.Body = strings.TrimSpace(in.Body)
	in.Title = strings.TrimSpace(in.Title)
	in.ExternalNoteRef = strings.TrimSpace(in.ExternalNoteRef)
	switch in.NoteType {
	case NoteTypeAdmin, NoteTypeClinical:
	default:
		return in, ValidationError("note_type", "note_type must be admin_note or clinical_note")
	}
	if in.Body == "" {
		return in, ValidationError("body", "body is required")
	}
	switch in.Status {
	case "":
		in.Status = NoteStatusOpen
	case NoteStatusOpen, NoteStatusResolved, NoteStatusArchived:
	default:
		return in, ValidationError("status", "status must be open, resolved or archived")
	}
	if err := validateActor("created_by", in.CreatedBy); err != nil {
		return in, err
	}
	return in, nil
}

func (in NoteInput) toNote(id string, tenantID string, scope NoteScope, memberID int64, orderID *int64, at time.Time) Note {
	return Note{
		ID:              id,
		TenantID:        strings.TrimSpace(tenantID),
		Scope:           scope,
		MemberID:        memberID,
		OrderID:         orderID,
		NoteType:        in.NoteType,
		Title:           in.Title,
		Body:            in.Body,
		Status:          in.Status,
		CreatedBy:       in.CreatedBy,
		ExternalNoteRef: in.ExternalNoteRef,
		CreatedAt:       at,
	}
}

func validateActor(field string, actor Actor) error {
	switch actor.Role {
	case ActorRoleAdmin, ActorRolePharmacist, ActorRolePatient, ActorRoleSystem:
		return nil
	default:
		return ValidationError(field+".role", "role must be admin, pharmacist, patient or system")
	}
}

func requirePositive(field string, value int64) error {
	if value <= 0 {
		return ValidationError(field, field+" must be a positive integer")
	}
	return nil
}
