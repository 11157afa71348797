package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type SubscriptionStore struct {
	db   *bun.DB
	repo repository.Repository[*subscriptionRecord]
}

func NewSubscriptionStore(db *bun.DB) (*SubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo, err := newRepository(db, subscriptionHandlers(), "subscription")
	if err != nil {
		return nil, err
	}
	return &SubscriptionStore{db: db, repo: repo}, nil
}

// ListEnabled runs on the context connection so emits inside a write
// transaction see subscriptions through the same transaction.
func (s *SubscriptionStore) ListEnabled(ctx context.Context, tenantID string) ([]core.Subscription, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	var records []subscriptionRecord
	err := conn(ctx, s.db).NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.enabled = ?", true).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Subscription, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

func (s *SubscriptionStore) Upsert(ctx context.Context, in core.UpsertSubscriptionInput) (core.Subscription, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	in.ID = strings.TrimSpace(in.ID)
	in.TenantID = strings.TrimSpace(in.TenantID)
	if in.ID == "" || in.TenantID == "" {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription id and tenant id are required")
	}
	now := time.Now().UTC()

	var out core.Subscription
	err := NewUnitOfWork(s.db).WithinTx(ctx, func(ctx context.Context) error {
		idb := conn(ctx, s.db)
		existing := new(subscriptionRecord)
		err := idb.NewSelect().
			Model(existing).
			Where("?TableAlias.id = ?", in.ID).
			Limit(1).
			Scan(ctx)
		if err != nil && !isNoRows(err) {
			return err
		}
		if isNoRows(err) {
			record := newSubscriptionRecord(in, now)
			if _, createErr := idb.NewInsert().Model(record).Exec(ctx); createErr != nil {
				return createErr
			}
			out = record.toDomain()
			return nil
		}
		if existing.TenantID != in.TenantID {
			return notFound("subscription %q", in.ID)
		}

		existing.URL = strings.TrimSpace(in.URL)
		existing.Secret = in.Secret
		existing.EventTypes = append([]string(nil), in.EventTypes...)
		existing.Enabled = in.Enabled
		existing.SubscriberKind = string(in.Kind)
		existing.UpdatedAt = now
		if _, updateErr := idb.NewUpdate().
			Model(existing).
			WherePK().
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.Subscription{}, err
	}
	return out, nil
}

func (s *SubscriptionStore) SetEnabled(ctx context.Context, tenantID string, id string, enabled bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	res, err := conn(ctx, s.db).NewUpdate().
		Model((*subscriptionRecord)(nil)).
		Set("enabled = ?", enabled).
		Set("updated_at = ?", time.Now().UTC()).
		Where("tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return notFound("subscription %q", id)
	}
	return nil
}

func (s *SubscriptionStore) Get(ctx context.Context, tenantID string, id string) (core.Subscription, error) {
	if s == nil || s.repo == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", strings.TrimSpace(id)),
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(tenantID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Subscription{}, err
	}
	if len(records) == 0 {
		return core.Subscription{}, notFound("subscription %q", id)
	}
	return records[0].toDomain(), nil
}

func newSubscriptionRecord(in core.UpsertSubscriptionInput, now time.Time) *subscriptionRecord {
	kind := string(in.Kind)
	if kind == "" {
		kind = string(core.SubscriberKindGeneric)
	}
	return &subscriptionRecord{
		ID:             in.ID,
		TenantID:       in.TenantID,
		URL:            strings.TrimSpace(in.URL),
		Secret:         in.Secret,
		EventTypes:     append([]string{}, in.EventTypes...),
		Enabled:        in.Enabled,
		SubscriberKind: kind,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r *subscriptionRecord) toDomain() core.Subscription {
	if r == nil {
		return core.Subscription{}
	}
	return core.Subscription{
		ID:         r.ID,
		TenantID:   r.TenantID,
		URL:        r.URL,
		Secret:     r.Secret,
		EventTypes: append([]string(nil), r.EventTypes...),
		Enabled:    r.Enabled,
		Kind:       core.SubscriberKind(r.SubscriberKind),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}
