package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type DeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*deliveryRecord]
}

func NewDeliveryStore(db *bun.DB) (*DeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo, err := newRepository(db, deliveryHandlers(), "delivery")
	if err != nil {
		return nil, err
	}
	return &DeliveryStore{db: db, repo: repo}, nil
}

func (s *DeliveryStore) InsertDeliveries(ctx context.Context, deliveries []core.Delivery) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if len(deliveries) == 0 {
		return nil
	}
	records := make([]*deliveryRecord, 0, len(deliveries))
	for _, delivery := range deliveries {
		records = append(records, newDeliveryRecord(delivery))
	}
	_, err := conn(ctx, s.db).NewInsert().Model(&records).Exec(ctx)
	return err
}

func (s *DeliveryStore) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	if limit <= 0 {
		return []string{}, nil
	}
	now = now.UTC()
	var ids []string
	err := conn(ctx, s.db).NewSelect().
		Model((*deliveryRecord)(nil)).
		Column("id").
		Where("?TableAlias.status = ?", string(core.DeliveryStatusPending)).
		Where("?TableAlias.next_attempt_at <= ?", now).
		Where("(?TableAlias.locked_until IS NULL OR ?TableAlias.locked_until < ?)", now).
		OrderExpr("?TableAlias.next_attempt_at ASC, ?TableAlias.id ASC").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Claim is a single conditional update, so of two workers racing for a row
// at most one sees an affected row.
func (s *DeliveryStore) Claim(ctx context.Context, id string, now time.Time, until time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	now = now.UTC()
	res, err := conn(ctx, s.db).NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("locked_until = ?", leaseValue(until)).
		Set("updated_at = ?", now).
		Where("id = ?", strings.TrimSpace(id)).
		Where("status = ?", string(core.DeliveryStatusPending)).
		Where("next_attempt_at <= ?", now).
		Where("(locked_until IS NULL OR locked_until < ?)", now).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *DeliveryStore) GetClaimed(ctx context.Context, id string) (core.ClaimedDelivery, error) {
	if s == nil || s.db == nil {
		return core.ClaimedDelivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	record := new(deliveryRecord)
	err := conn(ctx, s.db).NewSelect().
		Model(record).
		Relation("Subscription").
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return core.ClaimedDelivery{}, notFound("delivery %q", id)
		}
		return core.ClaimedDelivery{}, err
	}
	claimed := core.ClaimedDelivery{Delivery: record.toDomain()}
	if record.Subscription != nil && strings.TrimSpace(record.Subscription.ID) != "" {
		claimed.Subscription = record.Subscription.toDomain()
	}
	return claimed, nil
}

func (s *DeliveryStore) RecordOutcome(ctx context.Context, outcome core.DeliveryOutcome) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: delivery store is not configured")
	}
	attemptedAt := outcome.AttemptedAt.UTC()
	var lastError *string
	if msg := strings.TrimSpace(outcome.LastError); msg != "" {
		lastError = &msg
	}
	query := conn(ctx, s.db).NewUpdate().
		Model((*deliveryRecord)(nil)).
		Set("status = ?", string(outcome.Status)).
		Set("attempt_count = attempt_count + 1").
		Set("last_attempt_at = ?", attemptedAt).
		Set("last_error = ?", lastError).
		Set("locked_until = NULL").
		Set("updated_at = ?", attemptedAt).
		Where("id = ?", strings.TrimSpace(outcome.DeliveryID)).
		Where("status = ?", string(core.DeliveryStatusPending))
	if outcome.LeaseUntil != nil {
		query = query.Where("locked_until = ?", leaseValue(*outcome.LeaseUntil))
	}
	if outcome.NextAttemptAt != nil {
		query = query.Set("next_attempt_at = ?", outcome.NextAttemptAt.UTC())
	}
	res, err := query.Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.LeaseLostError(outcome.DeliveryID)
	}
	return nil
}

// leaseValue truncates to the microsecond precision both dialects store, so
// the value written by Claim compares equal in RecordOutcome.
func leaseValue(at time.Time) time.Time {
	return at.UTC().Truncate(time.Microsecond)
}

func (s *DeliveryStore) Get(ctx context.Context, id string) (core.Delivery, error) {
	if s == nil || s.repo == nil {
		return core.Delivery{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", strings.TrimSpace(id)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Delivery{}, err
	}
	if len(records) == 0 {
		return core.Delivery{}, notFound("delivery %q", id)
	}
	return records[0].toDomain(), nil
}

func (s *DeliveryStore) List(ctx context.Context, filter core.DeliveryFilter) (core.DeliveryPage, error) {
	if s == nil || s.repo == nil {
		return core.DeliveryPage{}, fmt.Errorf("sqlstore: delivery store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	selectors := []repository.SelectCriteria{
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(filter.TenantID)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, offset),
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.DeliveryPage{}, err
	}
	items := make([]core.Delivery, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.DeliveryPage{Items: items, Total: total}, nil
}

func newDeliveryRecord(delivery core.Delivery) *deliveryRecord {
	status := delivery.Status
	if status == "" {
		status = core.DeliveryStatusPending
	}
	record := &deliveryRecord{
		ID:             strings.TrimSpace(delivery.ID),
		TenantID:       strings.TrimSpace(delivery.TenantID),
		SubscriptionID: strings.TrimSpace(delivery.SubscriptionID),
		EventID:        delivery.EventID,
		EventType:      delivery.EventType,
		Payload:        string(delivery.Payload),
		Status:         string(status),
		AttemptCount:   delivery.AttemptCount,
		LastAttemptAt:  utcPtr(delivery.LastAttemptAt),
		NextAttemptAt:  delivery.NextAttemptAt.UTC(),
		LockedUntil:    utcPtr(delivery.LockedUntil),
		CreatedAt:      delivery.CreatedAt.UTC(),
		UpdatedAt:      delivery.UpdatedAt.UTC(),
	}
	if msg := strings.TrimSpace(delivery.LastError); msg != "" {
		record.LastError = &msg
	}
	return record
}

func (r *deliveryRecord) toDomain() core.Delivery {
	if r == nil {
		return core.Delivery{}
	}
	out := core.Delivery{
		ID:             r.ID,
		TenantID:       r.TenantID,
		SubscriptionID: r.SubscriptionID,
		EventID:        r.EventID,
		EventType:      r.EventType,
		Payload:        json.RawMessage(r.Payload),
		Status:         core.DeliveryStatus(r.Status),
		AttemptCount:   r.AttemptCount,
		LastAttemptAt:  utcPtr(r.LastAttemptAt),
		NextAttemptAt:  r.NextAttemptAt.UTC(),
		LockedUntil:    utcPtr(r.LockedUntil),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.LastError != nil {
		out.LastError = *r.LastError
	}
	return out
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	out := value.UTC()
	return &out
}
