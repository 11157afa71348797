package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-relay/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	unitOfWork        *UnitOfWork
	idempotencyStore  *IdempotencyStore
	subscriptionStore core.SubscriptionStore
	deliveryStore     *DeliveryStore
	orderStore        *OrderStore
	memberStore       *MemberStore
	noteStore         *NoteStore
	messageStore      *MessageStore
}

type FactoryOption func(*RepositoryFactory)

// WithSubscriptionCache puts enabled subscription lookups behind cacheService.
func WithSubscriptionCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.deliveryStore != nil && f.idempotencyStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) UnitOfWork() core.UnitOfWork {
	if f == nil {
		return nil
	}
	return f.unitOfWork
}

func (f *RepositoryFactory) IdempotencyStore() core.IdempotencyStore {
	if f == nil {
		return nil
	}
	return f.idempotencyStore
}

func (f *RepositoryFactory) SubscriptionStore() core.SubscriptionStore {
	if f == nil {
		return nil
	}
	return f.subscriptionStore
}

func (f *RepositoryFactory) DeliveryStore() core.DeliveryStore {
	if f == nil {
		return nil
	}
	return f.deliveryStore
}

func (f *RepositoryFactory) OrderStore() core.OrderStore {
	if f == nil {
		return nil
	}
	return f.orderStore
}

func (f *RepositoryFactory) MemberStore() core.MemberStore {
	if f == nil {
		return nil
	}
	return f.memberStore
}

func (f *RepositoryFactory) NoteStore() core.NoteStore {
	if f == nil {
		return nil
	}
	return f.noteStore
}

func (f *RepositoryFactory) MessageStore() core.MessageStore {
	if f == nil {
		return nil
	}
	return f.messageStore
}

func (f *RepositoryFactory) initStores() error {
	var err error
	f.unitOfWork = NewUnitOfWork(f.db)
	if f.idempotencyStore, err = NewIdempotencyStore(f.db); err != nil {
		return err
	}
	subscriptionStore, err := NewSubscriptionStore(f.db)
	if err != nil {
		return err
	}
	f.subscriptionStore = subscriptionStore
	if f.cache != nil {
		cached, cacheErr := NewCachedSubscriptionStore(subscriptionStore, f.cache)
		if cacheErr != nil {
			return cacheErr
		}
		f.subscriptionStore = cached
	}
	if f.deliveryStore, err = NewDeliveryStore(f.db); err != nil {
		return err
	}
	if f.orderStore, err = NewOrderStore(f.db); err != nil {
		return err
	}
	if f.memberStore, err = NewMemberStore(f.db); err != nil {
		return err
	}
	if f.noteStore, err = NewNoteStore(f.db); err != nil {
		return err
	}
	if f.messageStore, err = NewMessageStore(f.db); err != nil {
		return err
	}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
