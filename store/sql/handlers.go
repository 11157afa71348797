package sqlstore

import (
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// idHandlers builds repository handlers for records keyed by a uuid string
// column named id.
func idHandlers[R any](field func(*R) *string) repository.ModelHandlers[*R] {
	return repository.ModelHandlers[*R]{
		NewRecord: func() *R {
			return new(R)
		},
		GetID: func(record *R) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(*field(record))
		},
		SetID: func(record *R, id uuid.UUID) {
			if record == nil {
				return
			}
			*field(record) = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *R) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(*field(record))
		},
	}
}

func idempotencyHandlers() repository.ModelHandlers[*idempotencyRecord] {
	return idHandlers(func(r *idempotencyRecord) *string { return &r.ID })
}

func subscriptionHandlers() repository.ModelHandlers[*subscriptionRecord] {
	return idHandlers(func(r *subscriptionRecord) *string { return &r.ID })
}

func deliveryHandlers() repository.ModelHandlers[*deliveryRecord] {
	return idHandlers(func(r *deliveryRecord) *string { return &r.ID })
}

func noteHandlers() repository.ModelHandlers[*noteRecord] {
	return idHandlers(func(r *noteRecord) *string { return &r.ID })
}

func noteReplyHandlers() repository.ModelHandlers[*noteReplyRecord] {
	return idHandlers(func(r *noteReplyRecord) *string { return &r.ID })
}

func messageHandlers() repository.ModelHandlers[*messageRecord] {
	return idHandlers(func(r *messageRecord) *string { return &r.ID })
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

func newRepository[R any](db *bun.DB, handlers repository.ModelHandlers[*R], name string) (repository.Repository[*R], error) {
	repo := repository.NewRepository[*R](db, handlers)
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid %s repository wiring: %w", name, err)
		}
	}
	return repo, nil
}

func selectInt64(column string, value int64) repository.SelectCriteria {
	return repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? = ?", bun.Ident(column), value)
	})
}
