package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aparthaven/internal/domain/shared/money"
)

func TestSplitFor_Full(t *testing.T) {
	total := money.Must(24000, "EUR")
	split := SplitFor(PaymentFull, total)

	assert.Equal(t, total, split.Online)
	assert.True(t, split.Cash.IsZero())
	assert.Equal(t, "EUR", split.Cash.Currency)
	assert.NoError(t, split.Validate(total))
	assert.Equal(t, PaymentFull, split.Type())
}

func TestSplitFor_PartialHalvesWithCashRemainder(t *testing.T) {
	total := money.Must(24001, "EUR")
	split := SplitFor(PaymentPartial, total)

	assert.Equal(t, int64(12000), split.Online.Amount)
	assert.Equal(t, int64(12001), split.Cash.Amount)
	assert.NoError(t, split.Validate(total))
	assert.Equal(t, PaymentPartial, split.Type())
}

func TestSplit_SumInvariantHoldsForAnyTotal(t *testing.T) {
	for _, amount := range []int64{1, 2, 3, 999, 1000, 1001, 123457} {
		total := money.Must(amount, "EUR")
		split := SplitFor(PaymentPartial, total)
		assert.NoError(t, split.Validate(total), "amount %d", amount)
	}
}

func TestSplitValidate_RejectsMismatch(t *testing.T) {
	total := money.Must(1000, "EUR")
	split := PaymentSplit{Online: money.Must(400, "EUR"), Cash: money.Must(500, "EUR")}
	assert.ErrorIs(t, split.Validate(total), ErrSplitMismatch)

	split = PaymentSplit{Online: money.Must(500, "EUR"), Cash: money.Must(500, "USD")}
	assert.Error(t, split.Validate(total))
}
