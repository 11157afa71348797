package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryIdempotencyStore struct {
	mu        sync.Mutex
	records   map[IdempotencyKey]IdempotencyRecord
	inserts   int
	beforeAdd func(IdempotencyRecord)
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{records: map[IdempotencyKey]IdempotencyRecord{}}
}

func (s *memoryIdempotencyStore) Find(_ context.Context, key IdempotencyKey) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	return record, ok, nil
}

func (s *memoryIdempotencyStore) Insert(_ context.Context, record IdempotencyRecord) error {
	if s.beforeAdd != nil {
		s.beforeAdd(record)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.Key()]; ok {
		return fmt.Errorf("insert %s: %w", record.IdempotencyKey, ErrIdempotencyKeyTaken)
	}
	record.ResponseBody = append(json.RawMessage(nil), record.ResponseBody...)
	s.records[record.Key()] = record
	s.inserts++
	return nil
}

type memorySubscriptionStore struct {
	mu    sync.Mutex
	items map[string]Subscription
}

func newMemorySubscriptionStore(items ...Subscription) *memorySubscriptionStore {
	store := &memorySubscriptionStore{items: map[string]Subscription{}}
	for _, item := range items {
		store.items[item.ID] = item
	}
	return store
}

func (s *memorySubscriptionStore) ListEnabled(_ context.Context, tenantID string) ([]Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Subscription{}
	for _, item := range s.items {
		if item.TenantID == tenantID && item.Enabled {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memorySubscriptionStore) Upsert(_ context.Context, in UpsertSubscriptionInput) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := Subscription{
		ID:         in.ID,
		TenantID:   in.TenantID,
		URL:        in.URL,
		Secret:     in.Secret,
		EventTypes: append([]string(nil), in.EventTypes...),
		Enabled:    in.Enabled,
		Kind:       in.Kind,
	}
	s.items[item.ID] = item
	return item, nil
}

func (s *memorySubscriptionStore) SetEnabled(_ context.Context, tenantID string, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.TenantID != tenantID {
		return ErrRecordNotFound
	}
	item.Enabled = enabled
	s.items[id] = item
	return nil
}

func (s *memorySubscriptionStore) Get(_ context.Context, tenantID string, id string) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.TenantID != tenantID {
		return Subscription{}, ErrRecordNotFound
	}
	return item, nil
}

type memoryDeliveryStore struct {
	mu    sync.Mutex
	items []Delivery
}

func (s *memoryDeliveryStore) InsertDeliveries(_ context.Context, deliveries []Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, deliveries...)
	return nil
}

func (s *memoryDeliveryStore) ListDue(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for _, item := range s.items {
		if item.Status == DeliveryStatusPending && !item.NextAttemptAt.After(now) &&
			(item.LockedUntil == nil || item.LockedUntil.Before(now)) {
			ids = append(ids, item.ID)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (s *memoryDeliveryStore) Claim(_ context.Context, id string, now time.Time, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for index, item := range s.items {
		if item.ID != id {
			continue
		}
		if item.Status != DeliveryStatusPending || (item.LockedUntil != nil && !item.LockedUntil.Before(now)) {
			return false, nil
		}
		s.items[index].LockedUntil = &until
		return true, nil
	}
	return false, nil
}

func (s *memoryDeliveryStore) GetClaimed(ctx context.Context, id string) (ClaimedDelivery, error) {
	delivery, err := s.Get(ctx, id)
	return ClaimedDelivery{Delivery: delivery}, err
}

func (s *memoryDeliveryStore) RecordOutcome(_ context.Context, outcome DeliveryOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for index, item := range s.items {
		if item.ID != outcome.DeliveryID {
			continue
		}
		at := outcome.AttemptedAt
		item.AttemptCount++
		item.LastAttemptAt = &at
		item.LastError = outcome.LastError
		item.LockedUntil = nil
		item.Status = outcome.Status
		if outcome.NextAttemptAt != nil {
			item.NextAttemptAt = *outcome.NextAttemptAt
		}
		s.items[index] = item
		return nil
	}
	return ErrRecordNotFound
}

func (s *memoryDeliveryStore) Get(_ context.Context, id string) (Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return Delivery{}, ErrRecordNotFound
}

func (s *memoryDeliveryStore) List(_ context.Context, filter DeliveryFilter) (DeliveryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := DeliveryPage{Items: []Delivery{}}
	for _, item := range s.items {
		if item.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		page.Total++
		if page.Total > filter.Offset && len(page.Items) < filter.Limit {
			page.Items = append(page.Items, item)
		}
	}
	return page, nil
}

func (s *memoryDeliveryStore) snapshot() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Delivery(nil), s.items...)
}

type memoryOrderStore struct {
	mu          sync.Mutex
	orders      map[int64]Order
	workQueue   map[int64]WorkQueueItem
	assessments map[int64]AssessmentStatus
	locks       int
	updates     int
}

func newMemoryOrderStore(orders ...Order) *memoryOrderStore {
	store := &memoryOrderStore{
		orders:      map[int64]Order{},
		workQueue:   map[int64]WorkQueueItem{},
		assessments: map[int64]AssessmentStatus{},
	}
	for _, order := range orders {
		store.orders[order.OrderID] = order
	}
	return store
}

func (s *memoryOrderStore) GetOrder(_ context.Context, tenantID string, orderID int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.TenantID != tenantID {
		return Order{}, ErrRecordNotFound
	}
	return order, nil
}

func (s *memoryOrderStore) LockByRef(_ context.Context, tenantID string, orderRef string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks++
	for _, order := range s.orders {
		if order.TenantID == tenantID && order.PharmacyOrderRef == orderRef {
			return order, nil
		}
	}
	return Order{}, ErrRecordNotFound
}

func (s *memoryOrderStore) UpdateStatus(_ context.Context, tenantID string, orderID int64, status OrderStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.TenantID != tenantID {
		return ErrRecordNotFound
	}
	order.Status = status
	order.StatusChangedAt = &at
	order.UpdatedAt = at
	s.orders[orderID] = order
	s.updates++
	return nil
}

func (s *memoryOrderStore) UpsertLink(_ context.Context, order Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.orders[order.OrderID]
	if ok {
		if order.PharmacyOrderRef == "" {
			order.PharmacyOrderRef = existing.PharmacyOrderRef
		}
		if order.Status == "" {
			order.Status = existing.Status
		}
		order.CreatedAt = existing.CreatedAt
	}
	s.orders[order.OrderID] = order
	return order, nil
}

func (s *memoryOrderStore) UpsertWorkQueue(_ context.Context, item WorkQueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workQueue[item.OrderID] = item
	return nil
}

func (s *memoryOrderStore) UpsertAssessmentStatus(_ context.Context, status AssessmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessments[status.OrderID] = status
	return nil
}

func (s *memoryOrderStore) GetWorkQueueItem(_ context.Context, _ string, orderID int64) (WorkQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.workQueue[orderID]
	if !ok {
		return WorkQueueItem{}, ErrRecordNotFound
	}
	return item, nil
}

func (s *memoryOrderStore) GetAssessmentStatus(_ context.Context, _ string, orderID int64) (AssessmentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.assessments[orderID]
	if !ok {
		return AssessmentStatus{}, ErrRecordNotFound
	}
	return item, nil
}

type memoryMemberStore struct {
	mu      sync.Mutex
	members map[int64]Member
}

func newMemoryMemberStore() *memoryMemberStore {
	return &memoryMemberStore{members: map[int64]Member{}}
}

func (s *memoryMemberStore) Ensure(_ context.Context, tenantID string, memberID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[memberID]; !ok {
		s.members[memberID] = Member{TenantID: tenantID, MemberID: memberID}
	}
	return nil
}

func (s *memoryMemberStore) UpsertLink(_ context.Context, member Member) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.members[member.MemberID]; ok {
		if member.Email == "" {
			member.Email = existing.Email
		}
		if member.PharmacyPatientRef == "" {
			member.PharmacyPatientRef = existing.PharmacyPatientRef
		}
	}
	s.members[member.MemberID] = member
	return member, nil
}

func (s *memoryMemberStore) GetMember(_ context.Context, tenantID string, memberID int64) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	member, ok := s.members[memberID]
	if !ok || member.TenantID != tenantID {
		return Member{}, ErrRecordNotFound
	}
	return member, nil
}

type memoryNoteStore struct {
	mu      sync.Mutex
	notes   []Note
	replies []NoteReply
}

func (s *memoryNoteStore) GetNote(_ context.Context, tenantID string, noteID string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, note := range s.notes {
		if note.TenantID == tenantID && note.ID == noteID {
			return note, nil
		}
	}
	return Note{}, ErrRecordNotFound
}

func (s *memoryNoteStore) InsertNote(_ context.Context, note Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, note)
	return nil
}

func (s *memoryNoteStore) ResolveRef(_ context.Context, tenantID string, ref string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var byID *Note
	for index, note := range s.notes {
		if note.TenantID != tenantID {
			continue
		}
		if note.ExternalNoteRef == ref {
			return note, nil
		}
		if note.ID == ref && byID == nil {
			byID = &s.notes[index]
		}
	}
	if byID != nil {
		return *byID, nil
	}
	return Note{}, ErrRecordNotFound
}

func (s *memoryNoteStore) InsertReply(_ context.Context, reply NoteReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, reply)
	return nil
}

func (s *memoryNoteStore) ListByOrder(_ context.Context, tenantID string, orderID int64, limit int) ([]Note, error) {
	return s.filter(limit, func(note Note) bool {
		return note.TenantID == tenantID && note.Scope == NoteScopeOrder && note.OrderID != nil && *note.OrderID == orderID
	}), nil
}

func (s *memoryNoteStore) ListByMember(_ context.Context, tenantID string, memberID int64, limit int) ([]Note, error) {
	return s.filter(limit, func(note Note) bool {
		return note.TenantID == tenantID && note.MemberID == memberID
	}), nil
}

func (s *memoryNoteStore) ListReplies(_ context.Context, tenantID string, noteIDs []string) ([]NoteReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[string]struct{}{}
	for _, id := range noteIDs {
		wanted[id] = struct{}{}
	}
	out := []NoteReply{}
	for _, reply := range s.replies {
		if _, ok := wanted[reply.NoteID]; ok && reply.TenantID == tenantID {
			out = append(out, reply)
		}
	}
	return out, nil
}

func (s *memoryNoteStore) filter(limit int, keep func(Note) bool) []Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Note{}
	for index := len(s.notes) - 1; index >= 0; index-- {
		if keep(s.notes[index]) {
			out = append(out, s.notes[index])
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

type memoryMessageStore struct {
	mu       sync.Mutex
	messages []Message
}

func (s *memoryMessageStore) InsertMessage(_ context.Context, message Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *memoryMessageStore) ListByMember(_ context.Context, tenantID string, memberID int64, channel string, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Message{}
	for index := len(s.messages) - 1; index >= 0; index-- {
		message := s.messages[index]
		if message.TenantID != tenantID || message.MemberID != memberID {
			continue
		}
		if channel != MessageChannelFilterAll && string(message.Channel) != channel {
			continue
		}
		out = append(out, message)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type countingUnitOfWork struct {
	mu    sync.Mutex
	calls int
}

func (u *countingUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()
	return fn(ctx)
}

type memoryStores struct {
	idempotency   *memoryIdempotencyStore
	subscriptions *memorySubscriptionStore
	deliveries    *memoryDeliveryStore
	orders        *memoryOrderStore
	members       *memoryMemberStore
	notes         *memoryNoteStore
	messages      *memoryMessageStore
	uow           *countingUnitOfWork
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		idempotency:   newMemoryIdempotencyStore(),
		subscriptions: newMemorySubscriptionStore(),
		deliveries:    &memoryDeliveryStore{},
		orders:        newMemoryOrderStore(),
		members:       newMemoryMemberStore(),
		notes:         &memoryNoteStore{},
		messages:      &memoryMessageStore{},
		uow:           &countingUnitOfWork{},
	}
}

func (s *memoryStores) IdempotencyStore() IdempotencyStore   { return s.idempotency }
func (s *memoryStores) SubscriptionStore() SubscriptionStore { return s.subscriptions }
func (s *memoryStores) DeliveryStore() DeliveryStore         { return s.deliveries }
func (s *memoryStores) OrderStore() OrderStore               { return s.orders }
func (s *memoryStores) MemberStore() MemberStore             { return s.members }
func (s *memoryStores) NoteStore() NoteStore                 { return s.notes }
func (s *memoryStores) MessageStore() MessageStore           { return s.messages }
func (s *memoryStores) UnitOfWork() UnitOfWork               { return s.uow }

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type sequenceIDs struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func (g *sequenceIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s_%03d", strings.TrimSpace(g.prefix), g.next)
}

func newTestService(stores *memoryStores, opts ...Option) (*Service, error) {
	clock := newFixedClock()
	ids := &sequenceIDs{prefix: "id"}
	base := []Option{
		WithRepositoryFactory(stores),
		WithClock(clock.Now),
		WithIDGenerator(ids.NewID),
	}
	return NewService(DefaultConfig(), append(base, opts...)...)
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}
