package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-relay/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type IdempotencyStore struct {
	db   *bun.DB
	repo repository.Repository[*idempotencyRecord]
}

func NewIdempotencyStore(db *bun.DB) (*IdempotencyStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo, err := newRepository(db, idempotencyHandlers(), "idempotency")
	if err != nil {
		return nil, err
	}
	return &IdempotencyStore{db: db, repo: repo}, nil
}

func (s *IdempotencyStore) Find(ctx context.Context, key core.IdempotencyKey) (core.IdempotencyRecord, bool, error) {
	if s == nil || s.repo == nil {
		return core.IdempotencyRecord{}, false, fmt.Errorf("sqlstore: idempotency store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant_id", "=", strings.TrimSpace(key.TenantID)),
		repository.SelectBy("endpoint", "=", strings.TrimSpace(key.Endpoint)),
		repository.SelectBy("idempotency_key", "=", strings.TrimSpace(key.Key)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.IdempotencyRecord{}, false, err
	}
	if len(records) == 0 {
		return core.IdempotencyRecord{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *IdempotencyStore) Insert(ctx context.Context, record core.IdempotencyRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: idempotency store is not configured")
	}
	row := &idempotencyRecord{
		ID:             strings.TrimSpace(record.ID),
		TenantID:       strings.TrimSpace(record.TenantID),
		Endpoint:       strings.TrimSpace(record.Endpoint),
		IdempotencyKey: strings.TrimSpace(record.IdempotencyKey),
		RequestHash:    record.RequestHash,
		ResponseBody:   string(record.ResponseBody),
		CreatedAt:      record.CreatedAt.UTC(),
	}
	if _, err := conn(ctx, s.db).NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlstore: %w: %v", core.ErrIdempotencyKeyTaken, err)
		}
		return err
	}
	return nil
}

func (r *idempotencyRecord) toDomain() core.IdempotencyRecord {
	if r == nil {
		return core.IdempotencyRecord{}
	}
	return core.IdempotencyRecord{
		ID:             r.ID,
		TenantID:       r.TenantID,
		Endpoint:       r.Endpoint,
		IdempotencyKey: r.IdempotencyKey,
		RequestHash:    r.RequestHash,
		ResponseBody:   json.RawMessage(r.ResponseBody),
		CreatedAt:      r.CreatedAt.UTC(),
	}
}
