package dto

import (
	"time"

	domainbooking "aparthaven/internal/domain/booking"
)

type BookingSummary struct {
	ID           string    `json:"id"`
	PropertyID   string    `json:"property_id"`
	CheckIn      time.Time `json:"check_in"`
	CheckOut     time.Time `json:"check_out"`
	GuestName    string    `json:"guest_name"`
	GuestEmail   string    `json:"guest_email"`
	Total        MoneyDTO  `json:"total"`
	OnlineAmount MoneyDTO  `json:"online_amount"`
	CashAmount   MoneyDTO  `json:"cash_amount"`
	Status       string    `json:"status"`
	PaymentRef   string    `json:"payment_ref,omitempty"`
	CashReceived bool      `json:"cash_received"`
	CreatedAt    time.Time `json:"created_at"`
}

type BookingCollection struct {
	Items []BookingSummary `json:"items"`
}

func MapBooking(b *domainbooking.Booking) BookingSummary {
	return BookingSummary{
		ID:           string(b.ID),
		PropertyID:   string(b.PropertyID),
		CheckIn:      b.Range.CheckIn,
		CheckOut:     b.Range.CheckOut,
		GuestName:    b.Guest.Name,
		GuestEmail:   b.Guest.Email,
		Total:        MapMoney(b.Total),
		OnlineAmount: MapMoney(b.Split.Online),
		CashAmount:   MapMoney(b.Split.Cash),
		Status:       string(b.State),
		PaymentRef:   b.PaymentRef,
		CashReceived: b.CashReceived,
		CreatedAt:    b.CreatedAt,
	}
}

func MapBookings(items []*domainbooking.Booking) BookingCollection {
	out := BookingCollection{Items: make([]BookingSummary, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}
