package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const subscriptionCacheKeyPrefix = "go-relay::subscriptions::v1"

// DefaultSubscriptionCacheTTL bounds how long a subscription changed outside
// the relay can go unseen by the emitter. Relay-side writes invalidate at once.
const DefaultSubscriptionCacheTTL = 30 * time.Second

// NewSubscriptionCacheService builds the cache backing CachedSubscriptionStore.
// A non-positive ttl uses DefaultSubscriptionCacheTTL.
func NewSubscriptionCacheService(ttl time.Duration) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	config.TTL = subscriptionCacheTTL(ttl)
	return repositorycache.NewCacheService(config)
}

func subscriptionCacheTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultSubscriptionCacheTTL
	}
	return ttl
}

// CachedSubscriptionStore caches the enabled subscription set per tenant.
// Writes go to the base store first and then drop the tenant entry.
type CachedSubscriptionStore struct {
	base  core.SubscriptionStore
	cache repositorycache.CacheService
}

func NewCachedSubscriptionStore(
	base core.SubscriptionStore,
	cacheService repositorycache.CacheService,
) (*CachedSubscriptionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base subscription store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: subscription cache service is required")
	}
	return &CachedSubscriptionStore{base: base, cache: cacheService}, nil
}

// SubscriptionCacheKey returns go-relay::subscriptions::v1::<tenant> with
// the tenant URL-path escaped.
func SubscriptionCacheKey(tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", fmt.Errorf("sqlstore: tenant id is required for subscription cache key")
	}
	return subscriptionCacheKeyPrefix + "::" + url.PathEscape(tenantID), nil
}

func (s *CachedSubscriptionStore) ListEnabled(ctx context.Context, tenantID string) ([]core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	cacheKey, err := SubscriptionCacheKey(tenantID)
	if err != nil {
		return nil, err
	}
	subscriptions, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.Subscription, error) {
		fetched, fetchErr := s.base.ListEnabled(ctx, tenantID)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return cloneSubscriptions(fetched), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneSubscriptions(subscriptions), nil
}

func (s *CachedSubscriptionStore) Upsert(ctx context.Context, in core.UpsertSubscriptionInput) (core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	subscription, err := s.base.Upsert(ctx, in)
	if err != nil {
		return core.Subscription{}, err
	}
	if err := s.invalidate(ctx, in.TenantID); err != nil {
		return core.Subscription{}, err
	}
	return subscription, nil
}

func (s *CachedSubscriptionStore) SetEnabled(ctx context.Context, tenantID string, id string, enabled bool) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	if err := s.base.SetEnabled(ctx, tenantID, id, enabled); err != nil {
		return err
	}
	return s.invalidate(ctx, tenantID)
}

func (s *CachedSubscriptionStore) Get(ctx context.Context, tenantID string, id string) (core.Subscription, error) {
	if s == nil || s.base == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	return s.base.Get(ctx, tenantID, id)
}

func (s *CachedSubscriptionStore) invalidate(ctx context.Context, tenantID string) error {
	cacheKey, err := SubscriptionCacheKey(tenantID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneSubscriptions(in []core.Subscription) []core.Subscription {
	out := make([]core.Subscription, 0, len(in))
	for _, subscription := range in {
		subscription.EventTypes = append([]string(nil), subscription.EventTypes...)
		out = append(out, subscription)
	}
	return out
}
