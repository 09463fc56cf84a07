package availability

import (
	"time"

	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/domain/shared/money"
)

// Quote is the outcome of evaluating a candidate stay against a resolved
// per-day schedule.
type Quote struct {
	Nights         int
	Total          money.Money
	Available      bool
	MinimumStayMet bool
	Conflicts      []time.Time
}

// EvaluateRange prices a [CheckIn, CheckOut) stay against resolved days.
//
// The stay is available iff every night is available; conflicts lists the
// nights that are not. The most restrictive per-night minimum stay governs
// the whole booking. A zero-night range is trivially available but can never
// satisfy a minimum stay.
func EvaluateRange(days []DayRecord, dr daterange.DateRange, defaults property.Defaults) Quote {
	quote := Quote{
		Nights:    dr.Nights(),
		Total:     money.Zero(defaults.BasePrice.Currency),
		Available: true,
	}
	if dr.IsEmpty() {
		return quote
	}

	byDay := make(map[string]DayRecord, len(days))
	for _, rec := range days {
		byDay[daterange.Key(rec.Date)] = rec
	}

	maxMinStay := 1
	for _, night := range dr.Days() {
		rec, ok := byDay[daterange.Key(night)]
		if !ok {
			// The resolver guarantees full coverage, but an incomplete list
			// must not break pricing: treat the night as bookable at the base
			// price with no stay restriction.
			rec = DayRecord{Date: night, Available: true, Price: defaults.BasePrice, MinimumStay: 1}
		}
		if !rec.Available {
			quote.Available = false
			quote.Conflicts = append(quote.Conflicts, daterange.Day(night))
		}
		if rec.MinimumStay > maxMinStay {
			maxMinStay = rec.MinimumStay
		}
		if quote.Total.Currency == "" {
			quote.Total.Currency = rec.Price.Currency
		}
		quote.Total.Amount += rec.Price.Amount
	}
	quote.MinimumStayMet = quote.Nights >= maxMinStay
	return quote
}
