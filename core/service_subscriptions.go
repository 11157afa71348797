package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

func (s *Service) UpsertSubscription(ctx context.Context, in UpsertSubscriptionInput) (subscription Subscription, err error) {
	startedAt := time.Now().UTC()
	in, err = normalizeSubscriptionInput(in)
	fields := map[string]any{"tenant_id": in.TenantID, "subscriber_kind": string(in.Kind)}
	defer func() {
		fields["subscription_id"] = subscription.ID
		s.observeOperation(ctx, startedAt, "upsert_subscription", err, fields)
	}()
	if err != nil {
		err = s.mapError(err)
		return Subscription{}, err
	}
	if s == nil || s.subscriptionStore == nil {
		err = s.mapError(fmt.Errorf("core: subscription store is required"))
		return Subscription{}, err
	}
	if in.ID == "" {
		in.ID = s.nextID()
	}
	subscription, err = s.subscriptionStore.Upsert(ctx, in)
	if err != nil {
		err = s.mapError(err)
		return Subscription{}, err
	}
	return subscription, nil
}

func (s *Service) SetSubscriptionEnabled(ctx context.Context, tenantID string, id string, enabled bool) (err error) {
	startedAt := time.Now().UTC()
	tenantID = strings.TrimSpace(tenantID)
	id = strings.TrimSpace(id)
	fields := map[string]any{"tenant_id": tenantID, "subscription_id": id, "enabled": enabled}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_subscription_enabled", err, fields)
	}()
	if err = validateTenant(tenantID); err == nil && id == "" {
		err = ValidationError("subscription_id", "subscription id is required")
	}
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if s == nil || s.subscriptionStore == nil {
		err = s.mapError(fmt.Errorf("core: subscription store is required"))
		return err
	}
	if err = s.subscriptionStore.SetEnabled(ctx, tenantID, id, enabled); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) GetSubscription(ctx context.Context, tenantID string, id string) (Subscription, error) {
	if s == nil || s.subscriptionStore == nil {
		return Subscription{}, s.mapError(fmt.Errorf("core: subscription store is required"))
	}
	subscription, err := s.subscriptionStore.Get(ctx, strings.TrimSpace(tenantID), strings.TrimSpace(id))
	if err != nil {
		return Subscription{}, s.mapError(err)
	}
	return subscription, nil
}

func normalizeSubscriptionInput(in UpsertSubscriptionInput) (UpsertSubscriptionInput, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.URL = strings.TrimSpace(in.URL)
	in.Secret = strings.TrimSpace(in.Secret)
	if in.Kind == "" {
		in.Kind = SubscriberKindGeneric
	}
	if err := validateTenant(in.TenantID); err != nil {
		return in, err
	}
	parsed, err := url.Parse(in.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return in, ValidationError("url", "url must be an absolute http or https url")
	}
	switch in.Kind {
	case SubscriberKindGeneric, SubscriberKindPharmacy:
	default:
		return in, ValidationError("subscriber_kind", "subscriber kind must be generic or pharmacy")
	}
	if in.Kind == SubscriberKindGeneric && in.Secret == "" {
		return in, ValidationError("secret", "secret is required for generic subscribers")
	}
	seen := map[string]struct{}{}
	events := make([]string, 0, len(in.EventTypes))
	for _, eventType := range in.EventTypes {
		eventType = strings.TrimSpace(eventType)
		if eventType == "" {
			continue
		}
		if _, ok := seen[eventType]; ok {
			continue
		}
		seen[eventType] = struct{}{}
		events = append(events, eventType)
	}
	if len(events) == 0 {
		return in, ValidationError("event_types", "at least one event type is required")
	}
	in.EventTypes = events
	return in, nil
}
