package confirm

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
	"aparthaven/internal/domain/shared/events"
	"aparthaven/internal/domain/shared/money"
)

// Input carries everything extracted from a successful payment, whether it
// arrived through the webhook or through a client poll of the session.
type Input struct {
	PropertyID  property.PropertyID
	Range       daterange.DateRange
	Guest       booking.Guest
	Total       money.Money
	PaymentType booking.PaymentType
	PaymentRef  string
}

// Confirmer turns a payment outcome into a durable, date-blocking booking,
// at most once per natural booking key. Both confirmation triggers funnel
// into Confirm, so redelivered webhooks and racing client polls collapse
// onto the same record.
type Confirmer struct {
	Bookings booking.Repository
	Calendar availability.Repository
	Outbox   outbox.Store
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Confirm writes the booking first, then blocks the covered dates. The
// booking write is the durability anchor: a paid guest must never lose their
// reservation because calendar writes failed. A partial blocking failure is
// surfaced as a retryable inconsistency, not swallowed.
func (c *Confirmer) Confirm(ctx context.Context, in Input) (*booking.Booking, error) {
	now := c.now()
	split := booking.SplitFor(in.PaymentType, in.Total)
	b, err := booking.NewBooking(booking.CreateParams{
		ID:         booking.BookingID(uuid.NewString()),
		PropertyID: in.PropertyID,
		Range:      in.Range,
		Guest:      in.Guest,
		Total:      in.Total,
		Split:      split,
		PaymentRef: in.PaymentRef,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("confirm: %w", err)
	}
	if err := b.Confirm(in.PaymentRef, now); err != nil {
		return nil, fmt.Errorf("confirm: %w", err)
	}
	b.BlockPending = true

	created, err := c.Bookings.Upsert(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("confirm: booking write: %w", err)
	}
	if !created {
		// Duplicate delivery. The stored record governs; nothing to do
		// unless its calendar blocking is still outstanding.
		c.log().Info("duplicate confirmation collapsed", "booking_id", b.ID, "key", b.Key().String())
		if !b.BlockPending {
			return b, nil
		}
	} else {
		c.appendEvents(ctx, b.Drain())
	}

	c.blockCalendar(ctx, b)
	return b, nil
}

// RepairCalendars retries date blocking for confirmed bookings whose
// calendar writes did not finish. Run periodically; each booking is retried
// independently of its original confirmation.
func (c *Confirmer) RepairCalendars(ctx context.Context) error {
	pending, err := c.Bookings.ListBlockPending(ctx)
	if err != nil {
		return fmt.Errorf("confirm: list pending blocks: %w", err)
	}
	for _, b := range pending {
		c.blockCalendar(ctx, b)
	}
	return nil
}

func (c *Confirmer) blockCalendar(ctx context.Context, b *booking.Booking) {
	note := fmt.Sprintf("Booked: %s", b.ID)
	if err := c.Calendar.Block(ctx, b.PropertyID, b.Range, note); err != nil {
		c.log().Error("calendar blocking failed, booking kept", "booking_id", b.ID, "property_id", b.PropertyID, "error", err)
		c.appendEvents(ctx, []events.Event{booking.CalendarBlockFailed{
			BookingID:  b.ID,
			PropertyID: b.PropertyID,
			Range:      b.Range,
			Reason:     err.Error(),
			At:         c.now(),
		}})
		return
	}
	b.BlockPending = false
	if err := c.Bookings.Save(ctx, b); err != nil {
		// The calendar is blocked; only the bookkeeping flag failed. The
		// repair loop will re-block, which is a harmless overwrite.
		c.log().Warn("could not clear block-pending flag", "booking_id", b.ID, "error", err)
	}
}

func (c *Confirmer) appendEvents(ctx context.Context, evs []events.Event) {
	if c.Outbox == nil || len(evs) == 0 {
		return
	}
	encoder := c.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}
	docs := make([]outbox.EventDocument, 0, len(evs))
	for _, e := range evs {
		doc, err := encoder.Encode(e)
		if err != nil {
			c.log().Error("event encoding failed", "event", e.EventName(), "error", err)
			continue
		}
		doc.ID = uuid.NewString()
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return
	}
	if err := c.Outbox.Append(ctx, docs...); err != nil {
		c.log().Error("outbox append failed", "error", err)
	}
}

func (c *Confirmer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Confirmer) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
