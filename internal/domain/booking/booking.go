package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/domain/shared/events"
	"aparthaven/internal/domain/shared/money"
)

var (
	ErrGuestEmailRequired = errors.New("booking: guest email required")
	ErrInvalidState       = errors.New("booking: invalid state transition")
	ErrBookingNotFound    = errors.New("booking: not found")
)

type BookingID string

type BookingState string

const (
	StatePending   BookingState = "PENDING"
	StateConfirmed BookingState = "CONFIRMED"
	StateCancelled BookingState = "CANCELLED"
)

// Guest identifies who is staying. UserID is optional; walk-in guests are
// known only by name and email.
type Guest struct {
	Name   string
	Email  string
	UserID string
}

// Key is the natural booking key. Two payment callbacks carrying the same key
// describe the same logical booking and must collapse into one record.
type Key struct {
	PropertyID property.PropertyID
	CheckIn    time.Time
	CheckOut   time.Time
	GuestEmail string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s",
		k.PropertyID,
		daterange.Key(k.CheckIn),
		daterange.Key(k.CheckOut),
		k.GuestEmail,
	)
}

type Booking struct {
	ID           BookingID
	PropertyID   property.PropertyID
	Range        daterange.DateRange
	Guest        Guest
	Total        money.Money
	Split        PaymentSplit
	State        BookingState
	PaymentRef   string
	CashReceived bool
	// BlockPending is set when the calendar-blocking pass after confirmation
	// did not finish; a repair worker retries until it clears.
	BlockPending bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
	events.EventRecorder `bson:"-"`
}

type CreateParams struct {
	ID         BookingID
	PropertyID property.PropertyID
	Range      daterange.DateRange
	Guest      Guest
	Total      money.Money
	Split      PaymentSplit
	PaymentRef string
	CreatedAt  time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Range.IsEmpty() {
		return nil, daterange.ErrInvalidRange
	}
	if strings.TrimSpace(params.Guest.Email) == "" {
		return nil, ErrGuestEmailRequired
	}
	if params.Total.Amount <= 0 {
		return nil, errors.New("booking: total must be positive")
	}
	if err := params.Split.Validate(params.Total); err != nil {
		return nil, err
	}
	params.Guest.Email = strings.ToLower(strings.TrimSpace(params.Guest.Email))
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:         params.ID,
		PropertyID: params.PropertyID,
		Range:      params.Range,
		Guest:      params.Guest,
		Total:      params.Total,
		Split:      params.Split,
		State:      StatePending,
		PaymentRef: params.PaymentRef,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return b, nil
}

// Key returns the natural key of this booking.
func (b *Booking) Key() Key {
	return Key{
		PropertyID: b.PropertyID,
		CheckIn:    b.Range.CheckIn,
		CheckOut:   b.Range.CheckOut,
		GuestEmail: strings.ToLower(b.Guest.Email),
	}
}

// Confirm transitions a paid booking to confirmed. Confirming an already
// confirmed booking is a no-op so redelivered payment callbacks stay harmless.
func (b *Booking) Confirm(paymentRef string, now time.Time) error {
	switch b.State {
	case StateConfirmed:
		return nil
	case StatePending:
	default:
		return ErrInvalidState
	}
	if paymentRef != "" {
		b.PaymentRef = paymentRef
	}
	b.State = StateConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		Range:      b.Range,
		Total:      b.Total,
		At:         b.UpdatedAt,
	})
	return nil
}

// Cancel flips the booking to cancelled. Bookings are never physically
// deleted in normal operation.
func (b *Booking) Cancel(reason string, now time.Time) error {
	switch b.State {
	case StatePending, StateConfirmed:
	default:
		return ErrInvalidState
	}
	b.State = StateCancelled
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{BookingID: b.ID, Reason: reason, At: b.UpdatedAt})
	return nil
}

// MarkCashReceived records settlement of the cash-on-arrival portion.
func (b *Booking) MarkCashReceived(now time.Time) error {
	if b.State != StateConfirmed {
		return ErrInvalidState
	}
	b.CashReceived = true
	b.UpdatedAt = now.UTC()
	return nil
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	ByKey(ctx context.Context, key Key) (*Booking, error)
	ByPaymentRef(ctx context.Context, ref string) (*Booking, error)
	// Upsert durably writes the booking keyed on its natural key. It reports
	// whether a new record was created; when a booking with the same key
	// already exists the stored record is loaded into b and no row is added.
	Upsert(ctx context.Context, b *Booking) (created bool, err error)
	Save(ctx context.Context, b *Booking) error
	ListByProperty(ctx context.Context, id property.PropertyID) ([]*Booking, error)
	// ListBlockPending returns confirmed bookings whose calendar blocking has
	// not completed yet.
	ListBlockPending(ctx context.Context) ([]*Booking, error)
}
