// Package memory holds map-backed implementations of the storage contracts.
// They back local development without external services and the test suites.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"aparthaven/internal/app/outbox"
	"aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/booking"
	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
)

// AvailabilityRepository keeps per-day records keyed by property and date.
type AvailabilityRepository struct {
	mu   sync.RWMutex
	days map[property.PropertyID]map[string]availability.DayRecord

	// FailWrites and FailReads force errors, standing in for store outages.
	FailWrites error
	FailReads  error
}

func NewAvailabilityRepository() *AvailabilityRepository {
	return &AvailabilityRepository{days: make(map[property.PropertyID]map[string]availability.DayRecord)}
}

var _ availability.Repository = (*AvailabilityRepository)(nil)

func (r *AvailabilityRepository) Range(_ context.Context, id property.PropertyID, from, to time.Time) ([]availability.DayRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailReads != nil {
		return nil, r.FailReads
	}
	fromKey, toKey := daterange.Key(from), daterange.Key(to)
	var out []availability.DayRecord
	for key, rec := range r.days[id] {
		if key >= fromKey && key <= toKey {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *AvailabilityRepository) Put(_ context.Context, id property.PropertyID, rec availability.DayRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWrites != nil {
		return r.FailWrites
	}
	if r.days[id] == nil {
		r.days[id] = make(map[string]availability.DayRecord)
	}
	rec.Date = daterange.Day(rec.Date)
	r.days[id][daterange.Key(rec.Date)] = rec
	return nil
}

func (r *AvailabilityRepository) Block(ctx context.Context, id property.PropertyID, dr daterange.DateRange, note string) error {
	for _, day := range dr.Days() {
		rec, ok := r.get(id, day)
		if !ok {
			rec = availability.DayRecord{Date: day, MinimumStay: 1}
		}
		if err := r.Put(ctx, id, rec.Blocked(note)); err != nil {
			return err
		}
	}
	return nil
}

func (r *AvailabilityRepository) get(id property.PropertyID, day time.Time) (availability.DayRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.days[id][daterange.Key(day)]
	return rec, ok
}

// OverrideCache stages preview edits in process memory.
type OverrideCache struct {
	mu        sync.RWMutex
	overrides map[property.PropertyID]map[string]availability.Override
	FailReads error
}

func NewOverrideCache() *OverrideCache {
	return &OverrideCache{overrides: make(map[property.PropertyID]map[string]availability.Override)}
}

var _ availability.OverrideCache = (*OverrideCache)(nil)

func (c *OverrideCache) Overrides(_ context.Context, id property.PropertyID) (map[string]availability.Override, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.FailReads != nil {
		return nil, c.FailReads
	}
	out := make(map[string]availability.Override, len(c.overrides[id]))
	for key, o := range c.overrides[id] {
		out[key] = o
	}
	return out, nil
}

func (c *OverrideCache) Stage(_ context.Context, id property.PropertyID, day time.Time, o availability.Override) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overrides[id] == nil {
		c.overrides[id] = make(map[string]availability.Override)
	}
	c.overrides[id][daterange.Key(day)] = o
	return nil
}

func (c *OverrideCache) Clear(_ context.Context, id property.PropertyID, day time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.overrides[id], daterange.Key(day))
	return nil
}

// PropertyCatalog is a fixed set of properties.
type PropertyCatalog struct {
	mu    sync.RWMutex
	props map[property.PropertyID]property.Property
}

func NewPropertyCatalog(props ...property.Property) *PropertyCatalog {
	c := &PropertyCatalog{props: make(map[property.PropertyID]property.Property, len(props))}
	for _, p := range props {
		c.props[p.ID] = p
	}
	return c
}

var _ property.Catalog = (*PropertyCatalog)(nil)

func (c *PropertyCatalog) ByID(_ context.Context, id property.PropertyID) (*property.Property, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.props[id]
	if !ok {
		return nil, property.ErrNotFound
	}
	return &p, nil
}

func (c *PropertyCatalog) Add(p property.Property) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.props[p.ID] = p
}

// BookingRepository enforces the natural-key uniqueness the document store's
// unique index provides in production.
type BookingRepository struct {
	mu       sync.RWMutex
	byID     map[booking.BookingID]*booking.Booking
	byKey    map[string]booking.BookingID
	FailSave error
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{
		byID:  make(map[booking.BookingID]*booking.Booking),
		byKey: make(map[string]booking.BookingID),
	}
}

var _ booking.Repository = (*BookingRepository)(nil)

func (r *BookingRepository) ByID(_ context.Context, id booking.BookingID) (*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	clone := *b
	return &clone, nil
}

func (r *BookingRepository) ByKey(_ context.Context, key booking.Key) (*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key.String()]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	clone := *r.byID[id]
	return &clone, nil
}

func (r *BookingRepository) ByPaymentRef(_ context.Context, ref string) (*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.byID {
		if b.PaymentRef == ref {
			clone := *b
			return &clone, nil
		}
	}
	return nil, booking.ErrBookingNotFound
}

func (r *BookingRepository) Upsert(_ context.Context, b *booking.Booking) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := b.Key().String()
	if existingID, ok := r.byKey[key]; ok {
		*b = *r.byID[existingID]
		return false, nil
	}
	clone := *b
	r.byID[b.ID] = &clone
	r.byKey[key] = b.ID
	return true, nil
}

func (r *BookingRepository) Save(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		return r.FailSave
	}
	if _, ok := r.byID[b.ID]; !ok {
		return booking.ErrBookingNotFound
	}
	b.Version++
	clone := *b
	r.byID[b.ID] = &clone
	return nil
}

func (r *BookingRepository) ListByProperty(_ context.Context, id property.PropertyID) ([]*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*booking.Booking
	for _, b := range r.byID {
		if b.PropertyID == id {
			clone := *b
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *BookingRepository) ListBlockPending(_ context.Context) ([]*booking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*booking.Booking
	for _, b := range r.byID {
		if b.BlockPending && b.State == booking.StateConfirmed {
			clone := *b
			out = append(out, &clone)
		}
	}
	return out, nil
}

// OutboxStore keeps event documents in insertion order.
type OutboxStore struct {
	mu   sync.Mutex
	docs []outbox.EventDocument
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{}
}

var _ outbox.Store = (*OutboxStore)(nil)

func (s *OutboxStore) Append(_ context.Context, docs ...outbox.EventDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		if doc.Status == "" {
			doc.Status = outbox.StatusPending
		}
		s.docs = append(s.docs, doc)
	}
	return nil
}

func (s *OutboxStore) Claim(_ context.Context, workerID string) (*outbox.EventDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for i := range s.docs {
		doc := &s.docs[i]
		if doc.Status != outbox.StatusPending || doc.NextRetry.After(now) {
			continue
		}
		doc.ClaimedBy = workerID
		doc.NextRetry = now.Add(time.Minute)
		clone := *doc
		return &clone, nil
	}
	return nil, nil
}

func (s *OutboxStore) MarkSent(_ context.Context, id string) error {
	return s.mark(id, outbox.StatusSent, nil)
}

func (s *OutboxStore) MarkFailed(_ context.Context, id string, nextRetry time.Time, _ string) error {
	return s.mark(id, outbox.StatusPending, &nextRetry)
}

func (s *OutboxStore) mark(id string, status outbox.Status, nextRetry *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID != id {
			continue
		}
		s.docs[i].Status = status
		s.docs[i].Attempts++
		if nextRetry != nil {
			s.docs[i].NextRetry = *nextRetry
		}
		return nil
	}
	return nil
}

// Events returns a snapshot, newest last. Test helper.
func (s *OutboxStore) Events() []outbox.EventDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]outbox.EventDocument, len(s.docs))
	copy(out, s.docs)
	return out
}

// EventsNamed filters the snapshot by event name. Test helper.
func (s *OutboxStore) EventsNamed(name string) []outbox.EventDocument {
	var out []outbox.EventDocument
	for _, doc := range s.Events() {
		if strings.EqualFold(doc.Name, name) {
			out = append(out, doc)
		}
	}
	return out
}
