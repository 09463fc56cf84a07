package dto

import (
	"time"

	"aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

type DaySummary struct {
	Date        string   `json:"date"`
	Available   bool     `json:"is_available"`
	Price       MoneyDTO `json:"price"`
	MinimumStay int      `json:"minimum_stay"`
	InstantBook bool     `json:"is_instant_book"`
	Note        string   `json:"note,omitempty"`
}

type Calendar struct {
	PropertyID string       `json:"property_id"`
	Days       []DaySummary `json:"days"`
}

func MapCalendar(propertyID string, days []availability.DayRecord) Calendar {
	out := Calendar{PropertyID: propertyID, Days: make([]DaySummary, 0, len(days))}
	for _, rec := range days {
		out.Days = append(out.Days, MapDay(rec))
	}
	return out
}

func MapDay(rec availability.DayRecord) DaySummary {
	return DaySummary{
		Date:        daterange.Key(rec.Date),
		Available:   rec.Available,
		Price:       MapMoney(rec.Price),
		MinimumStay: rec.MinimumStay,
		InstantBook: rec.InstantBook,
		Note:        rec.Note,
	}
}

type RangeQuote struct {
	Nights         int      `json:"nights"`
	Total          MoneyDTO `json:"total_price"`
	Available      bool     `json:"is_available"`
	MinimumStayMet bool     `json:"minimum_stay_met"`
	Conflicts      []string `json:"conflicts"`
}

func MapQuote(q availability.Quote) RangeQuote {
	out := RangeQuote{
		Nights:         q.Nights,
		Total:          MapMoney(q.Total),
		Available:      q.Available,
		MinimumStayMet: q.MinimumStayMet,
		Conflicts:      make([]string, 0, len(q.Conflicts)),
	}
	for _, day := range q.Conflicts {
		out.Conflicts = append(out.Conflicts, daterange.Key(day))
	}
	return out
}

// ParseDay accepts only canonical calendar-day strings.
func ParseDay(s string) (time.Time, error) {
	return daterange.ParseKey(s)
}
