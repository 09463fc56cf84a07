package property

import (
	"context"
	"errors"

	"aparthaven/internal/domain/shared/money"
)

var ErrNotFound = errors.New("property: not found")

type PropertyID string

// Property is the subset of the property entity this service reads. The
// catalog itself is owned by the backing store; nothing here mutates it.
type Property struct {
	ID          PropertyID
	HostID      string
	Title       string
	City        string
	BasePrice   money.Money
	MinimumStay int
}

// Defaults are applied to any calendar day without a stored availability record.
type Defaults struct {
	BasePrice   money.Money
	MinimumStay int
}

func (p Property) Defaults() Defaults {
	minStay := p.MinimumStay
	if minStay < 1 {
		minStay = 1
	}
	return Defaults{BasePrice: p.BasePrice, MinimumStay: minStay}
}

type Catalog interface {
	ByID(ctx context.Context, id PropertyID) (*Property, error)
}
