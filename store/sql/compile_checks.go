package sqlstore

import "github.com/goliatone/go-relay/core"

var (
	_ core.UnitOfWork             = (*UnitOfWork)(nil)
	_ core.IdempotencyStore       = (*IdempotencyStore)(nil)
	_ core.SubscriptionStore      = (*SubscriptionStore)(nil)
	_ core.SubscriptionStore      = (*CachedSubscriptionStore)(nil)
	_ core.DeliveryStore          = (*DeliveryStore)(nil)
	_ core.OrderStore             = (*OrderStore)(nil)
	_ core.MemberStore            = (*MemberStore)(nil)
	_ core.NoteStore              = (*NoteStore)(nil)
	_ core.MessageStore           = (*MessageStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
