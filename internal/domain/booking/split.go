package booking

import (
	"errors"

	"aparthaven/internal/domain/shared/money"
)

var ErrSplitMismatch = errors.New("booking: online and cash amounts must sum to the total")

type PaymentType string

const (
	PaymentFull    PaymentType = "full"
	PaymentPartial PaymentType = "partial"
)

// PaymentSplit divides the total between the online-charged portion and the
// cash-on-arrival portion. For a full payment the cash portion is zero.
type PaymentSplit struct {
	Online money.Money
	Cash   money.Money
}

// SplitFor computes the split for a payment type. Partial payments charge
// half online; the online half rounds down to the nearest minor unit and the
// cash portion absorbs the remainder, so Online+Cash always equals the total
// even for odd amounts.
func SplitFor(typ PaymentType, total money.Money) PaymentSplit {
	if typ == PaymentPartial {
		online, cash := total.Halve()
		return PaymentSplit{Online: online, Cash: cash}
	}
	return PaymentSplit{Online: total, Cash: money.Zero(total.Currency)}
}

func (s PaymentSplit) Validate(total money.Money) error {
	sum, err := s.Online.Add(s.Cash)
	if err != nil {
		return err
	}
	if sum.Amount != total.Amount || sum.Currency != total.Currency {
		return ErrSplitMismatch
	}
	return nil
}

// Type reports whether the split represents a partial payment.
func (s PaymentSplit) Type() PaymentType {
	if s.Cash.Amount > 0 {
		return PaymentPartial
	}
	return PaymentFull
}
