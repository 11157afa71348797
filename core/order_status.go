package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPaymentReceived OrderStatus = "PAYMENT_RECEIVED"
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusApproved        OrderStatus = "APPROVED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRefund          OrderStatus = "REFUND"
	OrderStatusProcessing      OrderStatus = "PROCESSING"
)

var orderStatusPattern = regexp.MustCompile(`^[A-Z_]+$`)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPaymentReceived: {OrderStatusPending, OrderStatusCancelled},
	OrderStatusPending:         {OrderStatusApproved},
	OrderStatusCancelled:       {OrderStatusRefund},
}

var lockedOrderStatuses = map[OrderStatus]struct{}{
	OrderStatusApproved:   {},
	OrderStatusProcessing: {},
	OrderStatusRefund:     {},
}

// Locked reports whether no transition may leave this status.
func (s OrderStatus) Locked() bool {
	_, ok := lockedOrderStatuses[s]
	return ok
}

// CanTransitionTo reports whether next is a declared successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) requiresReason() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefund
}

type TransitionRequest struct {
	TenantID    string `json:"tenant_id"`
	OrderNumber string `json:"order_number"`
	Target      string `json:"target_status"`
	Reason      string `json:"reason,omitempty"`
}

type TransitionResult struct {
	OrderID        int64       `json:"order_id"`
	OrderNumber    string      `json:"order_number"`
	PreviousStatus OrderStatus `json:"previous_status"`
	NewStatus      OrderStatus `json:"new_status"`
}

func (r TransitionRequest) normalized() (TransitionRequest, OrderStatus, error) {
	r.TenantID = strings.TrimSpace(r.TenantID)
	r.OrderNumber = strings.TrimSpace(r.OrderNumber)
	r.Reason = strings.TrimSpace(r.Reason)
	target := OrderStatus(strings.TrimSpace(r.Target))

	if r.TenantID == "" {
		return r, "", ValidationError("tenant_id", "tenant id is required")
	}
	if r.OrderNumber == "" {
		return r, "", ValidationError("order_number", "order number is required")
	}
	if !orderStatusPattern.MatchString(string(target)) {
		return r, "", ValidationError("target_status", "target status must be an uppercase status name")
	}
	if target.requiresReason() && r.Reason == "" {
		return r, "", ValidationError("reason", fmt.Sprintf("reason is required when moving to %s", target))
	}
	r.Target = string(target)
	return r, target, nil
}

// OrderStatusGuard applies order status transitions under a row lock.
type OrderStatusGuard struct {
	Orders     OrderStore
	UnitOfWork UnitOfWork
	Now        func() time.Time
}

func NewOrderStatusGuard(orders OrderStore, uow UnitOfWork) *OrderStatusGuard {
	return &OrderStatusGuard{
		Orders:     orders,
		UnitOfWork: uow,
		Now:        utcNow,
	}
}

// Transition validates req before touching storage, then locks the order,
// checks the graph and writes the status with its side tables in one
// transaction. Callers inside an existing transaction join it.
func (g *OrderStatusGuard) Transition(ctx context.Context, req TransitionRequest) (TransitionResult, error) {
	if g == nil || g.Orders == nil {
		return TransitionResult{}, fmt.Errorf("core: order store is required for status transitions")
	}
	req, target, err := req.normalized()
	if err != nil {
		return TransitionResult{}, err
	}

	uow := g.UnitOfWork
	if uow == nil {
		uow = NoopUnitOfWork{}
	}
	var result TransitionResult
	err = uow.WithinTx(ctx, func(txCtx context.Context) error {
		order, lockErr := g.Orders.LockByRef(txCtx, req.TenantID, req.OrderNumber)
		if lockErr != nil {
			if IsNotFound(lockErr) {
				return NotFoundError("order not found", map[string]any{"order_number": req.OrderNumber})
			}
			return lockErr
		}

		current := order.Status
		metadata := map[string]any{
			"order_number": req.OrderNumber,
			"from":         string(current),
			"to":           string(target),
		}
		if current.Locked() {
			return ConflictError(
				fmt.Sprintf("order status %s is locked", current),
				ReasonOrderStatusLocked,
				metadata,
			)
		}
		if !current.CanTransitionTo(target) {
			return ConflictError(
				fmt.Sprintf("invalid transition from %s to %s", current, target),
				ReasonInvalidTransition,
				metadata,
			)
		}

		at := g.now()
		if updateErr := g.Orders.UpdateStatus(txCtx, req.TenantID, order.OrderID, target, at); updateErr != nil {
			return updateErr
		}
		switch target {
		case OrderStatusPending:
			if queueErr := g.Orders.UpsertWorkQueue(txCtx, WorkQueueItem{
				TenantID: req.TenantID,
				OrderID:  order.OrderID,
				Status:   WorkQueueStatusQueued,
				QueuedAt: at,
			}); queueErr != nil {
				return queueErr
			}
		case OrderStatusRefund:
			if assessErr := g.Orders.UpsertAssessmentStatus(txCtx, AssessmentStatus{
				TenantID:  req.TenantID,
				OrderID:   order.OrderID,
				Status:    AssessmentStatusRefunded,
				Reason:    req.Reason,
				UpdatedAt: at,
			}); assessErr != nil {
				return assessErr
			}
		}

		result = TransitionResult{
			OrderID:        order.OrderID,
			OrderNumber:    req.OrderNumber,
			PreviousStatus: current,
			NewStatus:      target,
		}
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}
	return result, nil
}

func (g *OrderStatusGuard) now() time.Time {
	if g != nil && g.Now != nil {
		return g.Now().UTC()
	}
	return utcNow()
}
