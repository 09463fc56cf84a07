package availability

import (
	"context"
	"errors"
	"time"

	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/domain/shared/money"
)

var (
	ErrInvalidPrice   = errors.New("availability: price must be positive")
	ErrInvalidMinStay = errors.New("availability: minimum stay must be positive")
)

// DayRecord describes one calendar day of one property: whether it can be
// booked, at what price, and under which minimum-stay rule. Records are never
// deleted, only overwritten.
type DayRecord struct {
	Date        time.Time
	Available   bool
	Price       money.Money
	MinimumStay int
	InstantBook bool
	Note        string
}

// Override is a partial day record. Nil fields leave the underlying value
// untouched; set fields replace it.
type Override struct {
	Available   *bool        `json:"available,omitempty"`
	Price       *money.Money `json:"price,omitempty"`
	MinimumStay *int         `json:"minimum_stay,omitempty"`
	InstantBook *bool        `json:"instant_book,omitempty"`
	Note        *string      `json:"note,omitempty"`
}

// Apply lays the override over a record field by field.
func (o Override) Apply(rec DayRecord) DayRecord {
	if o.Available != nil {
		rec.Available = *o.Available
	}
	if o.Price != nil {
		rec.Price = *o.Price
	}
	if o.MinimumStay != nil {
		rec.MinimumStay = *o.MinimumStay
	}
	if o.InstantBook != nil {
		rec.InstantBook = *o.InstantBook
	}
	if o.Note != nil {
		rec.Note = *o.Note
	}
	return rec
}

// Blocked returns a copy of the record marked unavailable with the note.
// Price and minimum stay carry over, so a blocked day still renders with the
// rate it was booked at.
func (d DayRecord) Blocked(note string) DayRecord {
	d.Available = false
	d.Note = note
	return d
}

// IsZero reports whether the override sets no field at all.
func (o Override) IsZero() bool {
	return o.Available == nil && o.Price == nil && o.MinimumStay == nil &&
		o.InstantBook == nil && o.Note == nil
}

func (o Override) Validate() error {
	if o.Price != nil && o.Price.Amount <= 0 {
		return ErrInvalidPrice
	}
	if o.MinimumStay != nil && *o.MinimumStay < 1 {
		return ErrInvalidMinStay
	}
	return nil
}

// Repository is the contract against the remote availability store.
type Repository interface {
	// Range returns stored records for the property within [from, to],
	// ordered by date ascending. Days without a record are absent.
	Range(ctx context.Context, id property.PropertyID, from, to time.Time) ([]DayRecord, error)
	// Put overwrites the record for a single day.
	Put(ctx context.Context, id property.PropertyID, rec DayRecord) error
	// Block marks every day in [CheckIn, CheckOut) unavailable with the note,
	// preserving each day's stored price and minimum stay. Days with no
	// stored record are written as a minimal unavailable placeholder.
	Block(ctx context.Context, id property.PropertyID, dr daterange.DateRange, note string) error
}

// OverrideCache exposes not-yet-persisted admin edits. It is advisory: any
// error or corrupt entry is treated as an empty cache.
type OverrideCache interface {
	Overrides(ctx context.Context, id property.PropertyID) (map[string]Override, error)
	Stage(ctx context.Context, id property.PropertyID, day time.Time, o Override) error
	Clear(ctx context.Context, id property.PropertyID, day time.Time) error
}

// Synthesize builds the default record for a day with no stored row. Past
// days are never available; the decision is made against the provided
// server-side reference day, not any client clock.
func Synthesize(day time.Time, defaults property.Defaults, today time.Time) DayRecord {
	return DayRecord{
		Date:        daterange.Day(day),
		Available:   !daterange.Day(day).Before(daterange.Day(today)),
		Price:       defaults.BasePrice,
		MinimumStay: defaults.MinimumStay,
		InstantBook: true,
	}
}
