package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"aparthaven/internal/app/outbox"
	"aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/booking"
	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
)

// Refunder returns money against a captured payment. A zero amount refunds
// in full.
type Refunder interface {
	Refund(paymentRef string, amount int64) error
}

// Service carries the host-panel operations: direct calendar writes, staged
// override previews, and booking administration.
type Service struct {
	Calendar availability.Repository
	Cache    availability.OverrideCache
	Catalog  property.Catalog
	Bookings booking.Repository
	Payments Refunder
	Outbox   outbox.Store
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
	Now      func() time.Time
}

// UpsertDay overwrites one calendar day. The override is laid over the
// stored record, or over the synthesized default when no record exists yet,
// and any staged preview for that day is cleared.
func (s *Service) UpsertDay(ctx context.Context, id property.PropertyID, day time.Time, o availability.Override) (availability.DayRecord, error) {
	if err := o.Validate(); err != nil {
		return availability.DayRecord{}, err
	}
	prop, err := s.Catalog.ByID(ctx, id)
	if err != nil {
		return availability.DayRecord{}, err
	}

	day = daterange.Day(day)
	rec := availability.Synthesize(day, prop.Defaults(), s.now())
	stored, err := s.Calendar.Range(ctx, id, day, day)
	if err != nil {
		return availability.DayRecord{}, fmt.Errorf("admin: read day: %w", err)
	}
	if len(stored) > 0 {
		rec = stored[0]
	}
	rec = o.Apply(rec)

	if err := s.Calendar.Put(ctx, id, rec); err != nil {
		return availability.DayRecord{}, fmt.Errorf("admin: write day: %w", err)
	}
	if s.Cache != nil {
		if err := s.Cache.Clear(ctx, id, day); err != nil {
			s.log().Debug("staged override not cleared", "property_id", id, "date", daterange.Key(day), "error", err)
		}
	}
	return rec, nil
}

// StageOverride parks an edit in the preview cache without touching the
// store. Staged edits show up on calendar reads until cleared or persisted.
func (s *Service) StageOverride(ctx context.Context, id property.PropertyID, day time.Time, o availability.Override) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if s.Cache == nil {
		return fmt.Errorf("admin: override staging is not configured")
	}
	return s.Cache.Stage(ctx, id, daterange.Day(day), o)
}

// ListBookings returns every booking for one property.
func (s *Service) ListBookings(ctx context.Context, id property.PropertyID) ([]*booking.Booking, error) {
	return s.Bookings.ListByProperty(ctx, id)
}

// MarkCashReceived records settlement of the cash-on-arrival portion.
func (s *Service) MarkCashReceived(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	b, err := s.Bookings.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.MarkCashReceived(s.now()); err != nil {
		return nil, err
	}
	if err := s.Bookings.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("admin: save booking: %w", err)
	}
	return b, nil
}

// CancelBooking cancels a booking, frees its dates and refunds the online
// portion. The cancellation is durable even when the refund call fails; the
// failure is reported for manual follow-up rather than rolled back.
func (s *Service) CancelBooking(ctx context.Context, id booking.BookingID, reason string) (*booking.Booking, error) {
	b, err := s.Bookings.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wasConfirmed := b.State == booking.StateConfirmed
	if err := b.Cancel(reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.Bookings.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("admin: save booking: %w", err)
	}
	s.appendEvents(ctx, b)

	if wasConfirmed {
		s.releaseDates(ctx, b)
		if s.Payments != nil && b.PaymentRef != "" && b.Split.Online.Amount > 0 {
			if err := s.Payments.Refund(b.PaymentRef, b.Split.Online.Amount); err != nil {
				s.log().Error("refund failed, booking stays cancelled", "booking_id", b.ID, "payment_ref", b.PaymentRef, "error", err)
				return b, fmt.Errorf("admin: refund: %w", err)
			}
		}
	}
	return b, nil
}

func (s *Service) releaseDates(ctx context.Context, b *booking.Booking) {
	prop, err := s.Catalog.ByID(ctx, b.PropertyID)
	if err != nil {
		s.log().Error("could not load property to release dates", "booking_id", b.ID, "error", err)
		return
	}
	today := s.now()
	for _, day := range b.Range.Days() {
		rec := availability.Synthesize(day, prop.Defaults(), today)
		if err := s.Calendar.Put(ctx, b.PropertyID, rec); err != nil {
			s.log().Error("could not release booked day", "booking_id", b.ID, "date", daterange.Key(day), "error", err)
			return
		}
	}
}

func (s *Service) appendEvents(ctx context.Context, b *booking.Booking) {
	evs := b.Drain()
	if s.Outbox == nil || len(evs) == 0 {
		return
	}
	encoder := s.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}
	docs := make([]outbox.EventDocument, 0, len(evs))
	for _, e := range evs {
		doc, err := encoder.Encode(e)
		if err != nil {
			s.log().Error("event encoding failed", "event", e.EventName(), "error", err)
			continue
		}
		doc.ID = uuid.NewString()
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return
	}
	if err := s.Outbox.Append(ctx, docs...); err != nil {
		s.log().Error("outbox append failed", "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
