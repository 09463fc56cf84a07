package availability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/domain/shared/money"
	"aparthaven/internal/infra/storage/memory"
)

func resolveWindow(t *testing.T, store *memory.AvailabilityRepository, from, to string) []availability.DayRecord {
	t.Helper()
	r := newResolver(store, nil, "2025-01-01")
	days, err := r.Resolve(context.Background(), testProperty.ID, day(from), day(to))
	require.NoError(t, err)
	return days
}

func stay(t *testing.T, checkIn, checkOut string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(day(checkIn), day(checkOut))
	require.NoError(t, err)
	return dr
}

func TestEvaluateRange_AllNightsOpen(t *testing.T) {
	store := memory.NewAvailabilityRepository()
	days := resolveWindow(t, store, "2025-03-01", "2025-03-04")

	quote := availability.EvaluateRange(days, stay(t, "2025-03-01", "2025-03-04"), testProperty.Defaults())

	assert.Equal(t, 3, quote.Nights)
	assert.True(t, quote.Available)
	assert.True(t, quote.MinimumStayMet)
	assert.Empty(t, quote.Conflicts)
	assert.Equal(t, money.Must(24000, "EUR"), quote.Total)
}

func TestEvaluateRange_ConflictListsBlockedNight(t *testing.T) {
	store := memory.NewAvailabilityRepository()
	require.NoError(t, store.Put(context.Background(), testProperty.ID, availability.DayRecord{
		Date:        day("2025-03-02"),
		Available:   false,
		Price:       testProperty.BasePrice,
		MinimumStay: 1,
	}))
	days := resolveWindow(t, store, "2025-03-01", "2025-03-03")

	quote := availability.EvaluateRange(days, stay(t, "2025-03-01", "2025-03-04"), testProperty.Defaults())

	assert.False(t, quote.Available)
	require.Len(t, quote.Conflicts, 1)
	assert.Equal(t, day("2025-03-02"), quote.Conflicts[0])
	// the total still covers every night so the client can show it
	assert.Equal(t, money.Must(24000, "EUR"), quote.Total)
}

func TestEvaluateRange_MostRestrictiveMinimumStayGoverns(t *testing.T) {
	store := memory.NewAvailabilityRepository()
	require.NoError(t, store.Put(context.Background(), testProperty.ID, availability.DayRecord{
		Date:        day("2025-03-02"),
		Available:   true,
		Price:       testProperty.BasePrice,
		MinimumStay: 5,
	}))
	days := resolveWindow(t, store, "2025-03-01", "2025-03-03")

	quote := availability.EvaluateRange(days, stay(t, "2025-03-01", "2025-03-04"), testProperty.Defaults())

	assert.True(t, quote.Available)
	assert.False(t, quote.MinimumStayMet)
	assert.Equal(t, 3, quote.Nights)
}

func TestEvaluateRange_PerNightPricesSum(t *testing.T) {
	store := memory.NewAvailabilityRepository()
	require.NoError(t, store.Put(context.Background(), testProperty.ID, availability.DayRecord{
		Date: day("2025-03-02"), Available: true, Price: money.Must(15000, "EUR"), MinimumStay: 1,
	}))
	days := resolveWindow(t, store, "2025-03-01", "2025-03-02")

	quote := availability.EvaluateRange(days, stay(t, "2025-03-01", "2025-03-03"), testProperty.Defaults())

	assert.Equal(t, money.Must(23000, "EUR"), quote.Total)
}

func TestEvaluateRange_EmptyRange(t *testing.T) {
	quote := availability.EvaluateRange(nil, daterange.Empty(day("2025-03-01")), testProperty.Defaults())

	assert.Equal(t, 0, quote.Nights)
	assert.True(t, quote.Available)
	assert.False(t, quote.MinimumStayMet)
	assert.True(t, quote.Total.IsZero())
	assert.Empty(t, quote.Conflicts)
}

func TestEvaluateRange_MissingDaysPricedAtBase(t *testing.T) {
	quote := availability.EvaluateRange(nil, stay(t, "2025-03-01", "2025-03-03"), testProperty.Defaults())

	assert.True(t, quote.Available)
	assert.Equal(t, money.Must(16000, "EUR"), quote.Total)
	// defaults carry the property minimum stay only through resolved days;
	// unresolved nights impose no restriction of their own
	assert.True(t, quote.MinimumStayMet)
}

func TestEvaluateRange_LongWindow(t *testing.T) {
	store := memory.NewAvailabilityRepository()
	blockedKeys := map[string]bool{"2025-03-10": true, "2025-03-20": true, "2025-03-30": true}
	for key := range blockedKeys {
		require.NoError(t, store.Put(context.Background(), testProperty.ID, availability.DayRecord{
			Date: day(key), Available: false, Price: testProperty.BasePrice, MinimumStay: 1,
		}))
	}
	days := resolveWindow(t, store, "2025-03-01", "2025-04-29")
	require.Len(t, days, 60)

	quote := availability.EvaluateRange(days, stay(t, "2025-03-01", "2025-04-30"), testProperty.Defaults())

	assert.Equal(t, 60, quote.Nights)
	assert.False(t, quote.Available)
	require.Len(t, quote.Conflicts, 3)
	for _, conflict := range quote.Conflicts {
		assert.True(t, blockedKeys[daterange.Key(conflict)], "unexpected conflict %s", daterange.Key(conflict))
	}
	assert.Equal(t, money.Must(60*8000, "EUR"), quote.Total)
}
