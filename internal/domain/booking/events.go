package booking

import (
	"time"

	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/domain/shared/money"
)

type BookingConfirmed struct {
	BookingID  BookingID           `json:"booking_id"`
	PropertyID property.PropertyID `json:"property_id"`
	Range      daterange.DateRange `json:"range"`
	Total      money.Money         `json:"total"`
	At         time.Time           `json:"at"`
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID BookingID `json:"booking_id"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

// CalendarBlockFailed flags a confirmed booking whose date-blocking pass did
// not complete. The calendar and the booking table disagree until a repair
// run succeeds; operators subscribe to this.
type CalendarBlockFailed struct {
	BookingID  BookingID           `json:"booking_id"`
	PropertyID property.PropertyID `json:"property_id"`
	Range      daterange.DateRange `json:"range"`
	Reason     string              `json:"reason"`
	At         time.Time           `json:"at"`
}

func (e CalendarBlockFailed) EventName() string     { return "calendar.block_failed" }
func (e CalendarBlockFailed) AggregateID() string   { return string(e.BookingID) }
func (e CalendarBlockFailed) OccurredAt() time.Time { return e.At }
