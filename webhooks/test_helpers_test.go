package webhooks

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-relay/core"
)

type memoryDeliveryStore struct {
	mu            sync.Mutex
	rows          map[string]*core.Delivery
	subscriptions map[string]core.Subscription
	claims        map[string]int
	listErr       error
	recordErr     error
	beforeRecord  func(row *core.Delivery)
}

func newMemoryDeliveryStore() *memoryDeliveryStore {
	return &memoryDeliveryStore{
		rows:          map[string]*core.Delivery{},
		subscriptions: map[string]core.Subscription{},
		claims:        map[string]int{},
	}
}

func (s *memoryDeliveryStore) addSubscription(sub core.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.ID] = sub
}

func (s *memoryDeliveryStore) InsertDeliveries(_ context.Context, deliveries []core.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, delivery := range deliveries {
		copied := delivery
		s.rows[delivery.ID] = &copied
	}
	return nil
}

func due(row *core.Delivery, now time.Time) bool {
	if row.Status != core.DeliveryStatusPending || row.NextAttemptAt.After(now) {
		return false
	}
	return row.LockedUntil == nil || row.LockedUntil.Before(now)
}

func (s *memoryDeliveryStore) ListDue(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	rows := make([]*core.Delivery, 0, len(s.rows))
	for _, row := range s.rows {
		if due(row, now) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].NextAttemptAt.Equal(rows[j].NextAttemptAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].NextAttemptAt.Before(rows[j].NextAttemptAt)
	})
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (s *memoryDeliveryStore) Claim(_ context.Context, id string, now time.Time, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || !due(row, now) {
		return false, nil
	}
	lease := until
	row.LockedUntil = &lease
	s.claims[id]++
	return true, nil
}

func (s *memoryDeliveryStore) GetClaimed(_ context.Context, id string) (core.ClaimedDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return core.ClaimedDelivery{}, core.ErrRecordNotFound
	}
	return core.ClaimedDelivery{Delivery: *row, Subscription: s.subscriptions[row.SubscriptionID]}, nil
}

func (s *memoryDeliveryStore) RecordOutcome(_ context.Context, outcome core.DeliveryOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	row, ok := s.rows[outcome.DeliveryID]
	if !ok {
		return core.ErrRecordNotFound
	}
	if s.beforeRecord != nil {
		s.beforeRecord(row)
	}
	if row.Status != core.DeliveryStatusPending {
		return core.LeaseLostError(outcome.DeliveryID)
	}
	if outcome.LeaseUntil != nil && (row.LockedUntil == nil || !row.LockedUntil.Equal(*outcome.LeaseUntil)) {
		return core.LeaseLostError(outcome.DeliveryID)
	}
	attemptedAt := outcome.AttemptedAt
	row.Status = outcome.Status
	row.AttemptCount++
	row.LastAttemptAt = &attemptedAt
	row.LastError = outcome.LastError
	row.LockedUntil = nil
	if outcome.NextAttemptAt != nil {
		row.NextAttemptAt = *outcome.NextAttemptAt
	}
	row.UpdatedAt = attemptedAt
	return nil
}

func (s *memoryDeliveryStore) Get(_ context.Context, id string) (core.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return core.Delivery{}, core.ErrRecordNotFound
	}
	return *row, nil
}

func (s *memoryDeliveryStore) List(_ context.Context, filter core.DeliveryFilter) (core.DeliveryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := core.DeliveryPage{}
	for _, row := range s.rows {
		if row.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		page.Items = append(page.Items, *row)
	}
	page.Total = len(page.Items)
	return page, nil
}

func (s *memoryDeliveryStore) mustGet(t *testing.T, id string) core.Delivery {
	t.Helper()
	row, err := s.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get delivery %s: %v", id, err)
	}
	return row
}

type memoryLinks struct {
	orders map[int64]core.Order
	notes  map[string]core.Note
}

func (l memoryLinks) GetOrder(_ context.Context, _ string, orderID int64) (core.Order, error) {
	order, ok := l.orders[orderID]
	if !ok {
		return core.Order{}, core.ErrRecordNotFound
	}
	return order, nil
}

func (l memoryLinks) GetNote(_ context.Context, _ string, noteID string) (core.Note, error) {
	note, ok := l.notes[noteID]
	if !ok {
		return core.Note{}, core.ErrRecordNotFound
	}
	return note, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureMetrics struct {
	mu       sync.Mutex
	counters []map[string]string
}

func (m *captureMetrics) IncCounter(_ context.Context, name string, _ int64, tags map[string]string) {
	if name != core.MetricDeliveryOutcomeTotal {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, tags)
}

func (m *captureMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *captureMetrics) outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.counters))
	for _, tags := range m.counters {
		out = append(out, tags["outcome"])
	}
	return out
}

func pendingDelivery(t *testing.T, id string, sub core.Subscription, eventType string, data any, at time.Time) core.Delivery {
	t.Helper()
	encoded, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("encode data: %v", err)
	}
	payload, err := json.Marshal(core.Envelope{
		EventID:    "evt-" + id,
		EventType:  eventType,
		OccurredAt: at,
		TenantID:   sub.TenantID,
		Data:       encoded,
	})
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	return core.Delivery{
		ID:             id,
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		EventID:        "evt-" + id,
		EventType:      eventType,
		Payload:        payload,
		Status:         core.DeliveryStatusPending,
		NextAttemptAt:  at,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func genericSubscription(url string) core.Subscription {
	return core.Subscription{
		ID:         "sub-generic",
		TenantID:   "tenant-1",
		URL:        url,
		Secret:     "shh",
		EventTypes: []string{core.EventNoteCreated},
		Enabled:    true,
		Kind:       core.SubscriberKindGeneric,
	}
}

func pharmacySubscription(url string) core.Subscription {
	return core.Subscription{
		ID:         "sub-pharmacy",
		TenantID:   "tenant-1",
		URL:        url,
		Secret:     "pharmacy-secret",
		EventTypes: []string{core.EventNoteCreated},
		Enabled:    true,
		Kind:       core.SubscriberKindPharmacy,
	}
}
