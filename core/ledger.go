package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NoopUnitOfWork runs fn directly with no transaction.
type NoopUnitOfWork struct{}

func (NoopUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// RequestHash returns the hex sha256 of the JSON encoding of body. Map keys
// are encoded in sorted order so equal maps hash equally.
func RequestHash(body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("core: encode request body: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

type LedgerRequest struct {
	TenantID       string
	Endpoint       string
	IdempotencyKey string
	Body           any
}

type LedgerResult[T any] struct {
	Replayed bool
	Result   T
	// Raw is the serialized result, byte-identical across replays.
	Raw json.RawMessage
}

// CommandLedger deduplicates tenant-scoped writes by idempotency key.
type CommandLedger struct {
	Store      IdempotencyStore
	UnitOfWork UnitOfWork
	Now        func() time.Time
	NewID      func() string
}

func NewCommandLedger(store IdempotencyStore, uow UnitOfWork) *CommandLedger {
	return &CommandLedger{
		Store:      store,
		UnitOfWork: uow,
		Now:        utcNow,
		NewID:      defaultNewID,
	}
}

// ExecuteIdempotent runs handler at most once per (tenant, endpoint, key).
// The ledger row is inserted as the last write of the handler's transaction;
// a concurrent insert of the same key rolls the handler back and resolves to
// the winner's stored result or a conflict.
func ExecuteIdempotent[T any](
	ctx context.Context,
	ledger *CommandLedger,
	req LedgerRequest,
	handler func(ctx context.Context) (T, error),
) (LedgerResult[T], error) {
	if handler == nil {
		return LedgerResult[T]{}, fmt.Errorf("core: ledger handler is required")
	}
	key := IdempotencyKey{
		TenantID: strings.TrimSpace(req.TenantID),
		Endpoint: strings.TrimSpace(req.Endpoint),
		Key:      strings.TrimSpace(req.IdempotencyKey),
	}
	uow := ledger.unitOfWork()

	if key.Key == "" {
		var out LedgerResult[T]
		err := uow.WithinTx(ctx, func(txCtx context.Context) error {
			result, err := handler(txCtx)
			if err != nil {
				return err
			}
			out.Result = result
			return nil
		})
		if err != nil {
			return LedgerResult[T]{}, err
		}
		raw, err := json.Marshal(out.Result)
		if err != nil {
			return LedgerResult[T]{}, fmt.Errorf("core: encode result: %w", err)
		}
		out.Raw = raw
		return out, nil
	}

	if ledger == nil || ledger.Store == nil {
		return LedgerResult[T]{}, fmt.Errorf("core: idempotency store is required")
	}
	if key.TenantID == "" || key.Endpoint == "" {
		return LedgerResult[T]{}, fmt.Errorf("core: idempotency tenant and endpoint are required")
	}
	hash, err := RequestHash(req.Body)
	if err != nil {
		return LedgerResult[T]{}, err
	}

	if replay, found, err := replayRecorded[T](ctx, ledger.Store, key, hash); err != nil || found {
		return replay, err
	}

	var out LedgerResult[T]
	err = uow.WithinTx(ctx, func(txCtx context.Context) error {
		result, err := handler(txCtx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("core: encode result: %w", err)
		}
		if err := ledger.Store.Insert(txCtx, IdempotencyRecord{
			ID:             ledger.newID(),
			TenantID:       key.TenantID,
			Endpoint:       key.Endpoint,
			IdempotencyKey: key.Key,
			RequestHash:    hash,
			ResponseBody:   raw,
			CreatedAt:      ledger.now(),
		}); err != nil {
			return err
		}
		out = LedgerResult[T]{Result: result, Raw: raw}
		return nil
	})
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrIdempotencyKeyTaken) {
		return LedgerResult[T]{}, err
	}

	replay, found, findErr := replayRecorded[T](ctx, ledger.Store, key, hash)
	if findErr != nil {
		return LedgerResult[T]{}, findErr
	}
	if !found {
		return LedgerResult[T]{}, ConflictError(
			"idempotency key was recorded concurrently",
			ReasonIdempotencyKeyReused,
			map[string]any{"endpoint": key.Endpoint},
		)
	}
	return replay, nil
}

func replayRecorded[T any](
	ctx context.Context,
	store IdempotencyStore,
	key IdempotencyKey,
	hash string,
) (LedgerResult[T], bool, error) {
	record, found, err := store.Find(ctx, key)
	if err != nil {
		return LedgerResult[T]{}, false, err
	}
	if !found {
		return LedgerResult[T]{}, false, nil
	}
	if record.RequestHash != hash {
		return LedgerResult[T]{}, true, ConflictError(
			"idempotency key reused with a different request body",
			ReasonIdempotencyKeyReused,
			map[string]any{"endpoint": key.Endpoint},
		)
	}
	var result T
	if len(record.ResponseBody) > 0 {
		if err := json.Unmarshal(record.ResponseBody, &result); err != nil {
			return LedgerResult[T]{}, true, fmt.Errorf("core: decode recorded result: %w", err)
		}
	}
	return LedgerResult[T]{
		Replayed: true,
		Result:   result,
		Raw:      append(json.RawMessage(nil), record.ResponseBody...),
	}, true, nil
}

func (l *CommandLedger) unitOfWork() UnitOfWork {
	if l == nil || l.UnitOfWork == nil {
		return NoopUnitOfWork{}
	}
	return l.UnitOfWork
}

func (l *CommandLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return utcNow()
}

func (l *CommandLedger) newID() string {
	if l != nil && l.NewID != nil {
		return l.NewID()
	}
	return defaultNewID()
}
