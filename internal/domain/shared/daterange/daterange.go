package daterange

import (
	"errors"
	"time"
)

var ErrInvalidRange = errors.New("daterange: check-out must be after check-in")

// DayKeyLayout formats a calendar day without a time component.
const DayKeyLayout = "2006-01-02"

// DateRange is a [CheckIn, CheckOut) interval; CheckOut is exclusive.
type DateRange struct {
	CheckIn  time.Time `json:"check_in" bson:"check_in"`
	CheckOut time.Time `json:"check_out" bson:"check_out"`
}

// New builds a range of at least one night.
func New(checkIn, checkOut time.Time) (DateRange, error) {
	checkIn = Day(checkIn)
	checkOut = Day(checkOut)
	if !checkOut.After(checkIn) {
		return DateRange{}, ErrInvalidRange
	}
	return DateRange{CheckIn: checkIn, CheckOut: checkOut}, nil
}

// Empty builds a zero-night range anchored at the given day. Quote requests
// with check-in equal to check-out are legal and price to zero.
func Empty(day time.Time) DateRange {
	d := Day(day)
	return DateRange{CheckIn: d, CheckOut: d}
}

// Day normalizes a timestamp to UTC midnight of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Key returns the canonical string form of a calendar day.
func Key(t time.Time) string {
	return Day(t).Format(DayKeyLayout)
}

// ParseKey parses a canonical calendar-day string.
func ParseKey(s string) (time.Time, error) {
	return time.ParseInLocation(DayKeyLayout, s, time.UTC)
}

// Nights is the number of nights covered by the range.
func (dr DateRange) Nights() int {
	d := dr.CheckOut.Sub(dr.CheckIn)
	nights := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		nights++
	}
	return nights
}

// IsEmpty reports whether the range covers zero nights.
func (dr DateRange) IsEmpty() bool {
	return !dr.CheckOut.After(dr.CheckIn)
}

// Days returns every calendar day in [CheckIn, CheckOut) ascending.
func (dr DateRange) Days() []time.Time {
	if dr.IsEmpty() {
		return nil
	}
	days := make([]time.Time, 0, dr.Nights())
	for d := Day(dr.CheckIn); d.Before(dr.CheckOut); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether the given day falls inside the range.
func (dr DateRange) Contains(day time.Time) bool {
	d := Day(day)
	return !d.Before(dr.CheckIn) && d.Before(dr.CheckOut)
}

// Overlaps reports whether two ranges share at least one night.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}
