package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/uptrace/bun"
)

// OrderStore keeps the order link table and the status side tables. All
// methods run on the context connection so the status guard's lock, update
// and side table writes share one transaction.
type OrderStore struct {
	db *bun.DB
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &OrderStore{db: db}, nil
}

func (s *OrderStore) GetOrder(ctx context.Context, tenantID string, orderID int64) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	record, err := s.findOrder(ctx, conn(ctx, s.db), strings.TrimSpace(tenantID), orderID)
	if err != nil {
		return core.Order{}, err
	}
	if record == nil {
		return core.Order{}, notFound("order %d", orderID)
	}
	return record.toDomain(), nil
}

func (s *OrderStore) LockByRef(ctx context.Context, tenantID string, orderRef string) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	record := new(orderRecord)
	query := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.pharmacy_order_ref = ?", strings.TrimSpace(orderRef)).
		Limit(1)
	if isPostgres(s.db) {
		query = query.For("UPDATE")
	}
	if err := query.Scan(ctx); err != nil {
		if isNoRows(err) {
			return core.Order{}, notFound("order %q", orderRef)
		}
		return core.Order{}, err
	}
	return record.toDomain(), nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, tenantID string, orderID int64, status core.OrderStatus, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	at = at.UTC()
	res, err := conn(ctx, s.db).NewUpdate().
		Model((*orderRecord)(nil)).
		Set("status = ?", string(status)).
		Set("status_changed_at = ?", at).
		Set("updated_at = ?", at).
		Where("tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return notFound("order %d", orderID)
	}
	return nil
}

// UpsertLink inserts the order or refreshes its member, keeping the stored
// pharmacy reference and status when the incoming values are empty.
func (s *OrderStore) UpsertLink(ctx context.Context, order core.Order) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	order.TenantID = strings.TrimSpace(order.TenantID)
	order.PharmacyOrderRef = strings.TrimSpace(order.PharmacyOrderRef)
	now := order.UpdatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var out core.Order
	err := NewUnitOfWork(s.db).WithinTx(ctx, func(ctx context.Context) error {
		idb := conn(ctx, s.db)
		existing, err := s.findOrder(ctx, idb, order.TenantID, order.OrderID)
		if err != nil {
			return err
		}
		if existing == nil {
			record := &orderRecord{
				TenantID:         order.TenantID,
				OrderID:          order.OrderID,
				MemberID:         order.MemberID,
				PharmacyOrderRef: order.PharmacyOrderRef,
				Status:           string(order.Status),
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if _, insertErr := idb.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
			out = record.toDomain()
			return nil
		}

		existing.MemberID = order.MemberID
		if order.PharmacyOrderRef != "" {
			existing.PharmacyOrderRef = order.PharmacyOrderRef
		}
		if order.Status != "" {
			existing.Status = string(order.Status)
		}
		existing.UpdatedAt = now
		if _, updateErr := idb.NewUpdate().
			Model(existing).
			Column("member_id", "pharmacy_order_ref", "status", "updated_at").
			WherePK().
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.Order{}, err
	}
	return out, nil
}

func (s *OrderStore) UpsertWorkQueue(ctx context.Context, item core.WorkQueueItem) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	queuedAt := item.QueuedAt.UTC()
	record := &workQueueRecord{
		TenantID:  strings.TrimSpace(item.TenantID),
		OrderID:   item.OrderID,
		Status:    item.Status,
		QueuedAt:  queuedAt,
		UpdatedAt: queuedAt,
	}
	_, err := conn(ctx, s.db).NewInsert().
		Model(record).
		On("CONFLICT (tenant_id, order_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("queued_at = EXCLUDED.queued_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *OrderStore) UpsertAssessmentStatus(ctx context.Context, status core.AssessmentStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	record := &assessmentStatusRecord{
		TenantID:  strings.TrimSpace(status.TenantID),
		OrderID:   status.OrderID,
		Status:    status.Status,
		Reason:    status.Reason,
		UpdatedAt: status.UpdatedAt.UTC(),
	}
	_, err := conn(ctx, s.db).NewInsert().
		Model(record).
		On("CONFLICT (tenant_id, order_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("reason = EXCLUDED.reason").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *OrderStore) GetWorkQueueItem(ctx context.Context, tenantID string, orderID int64) (core.WorkQueueItem, error) {
	if s == nil || s.db == nil {
		return core.WorkQueueItem{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	record := new(workQueueRecord)
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return core.WorkQueueItem{}, notFound("work queue item for order %d", orderID)
		}
		return core.WorkQueueItem{}, err
	}
	return core.WorkQueueItem{
		TenantID: record.TenantID,
		OrderID:  record.OrderID,
		Status:   record.Status,
		QueuedAt: record.QueuedAt.UTC(),
	}, nil
}

func (s *OrderStore) GetAssessmentStatus(ctx context.Context, tenantID string, orderID int64) (core.AssessmentStatus, error) {
	if s == nil || s.db == nil {
		return core.AssessmentStatus{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	record := new(assessmentStatusRecord)
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return core.AssessmentStatus{}, notFound("assessment status for order %d", orderID)
		}
		return core.AssessmentStatus{}, err
	}
	return core.AssessmentStatus{
		TenantID:  record.TenantID,
		OrderID:   record.OrderID,
		Status:    record.Status,
		Reason:    record.Reason,
		UpdatedAt: record.UpdatedAt.UTC(),
	}, nil
}

func (s *OrderStore) findOrder(ctx context.Context, idb bun.IDB, tenantID string, orderID int64) (*orderRecord, error) {
	record := new(orderRecord)
	err := idb.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Where("?TableAlias.order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *orderRecord) toDomain() core.Order {
	if r == nil {
		return core.Order{}
	}
	return core.Order{
		TenantID:         r.TenantID,
		OrderID:          r.OrderID,
		MemberID:         r.MemberID,
		PharmacyOrderRef: r.PharmacyOrderRef,
		Status:           core.OrderStatus(r.Status),
		StatusChangedAt:  utcPtr(r.StatusChangedAt),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}
