package availability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/shared/money"
)

func TestBlocked_KeepsPriceAndMinimumStay(t *testing.T) {
	rec := availability.DayRecord{
		Date:        day("2025-07-10"),
		Available:   true,
		Price:       money.Must(9900, "EUR"),
		MinimumStay: 4,
		InstantBook: true,
	}

	blocked := rec.Blocked("booking bk-1")

	assert.False(t, blocked.Available)
	assert.Equal(t, "booking bk-1", blocked.Note)
	assert.Equal(t, money.Must(9900, "EUR"), blocked.Price)
	assert.Equal(t, 4, blocked.MinimumStay)
	assert.True(t, blocked.InstantBook)
	assert.True(t, rec.Available, "the original record is untouched")
}
