package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aparthaven/internal/domain/shared/daterange"
)

func day(s string) time.Time {
	t, err := daterange.ParseKey(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCoalesceDays(t *testing.T) {
	days := []time.Time{
		day("2025-03-01"),
		day("2025-03-02"),
		day("2025-03-03"),
		day("2025-03-07"),
		day("2025-03-09"),
		day("2025-03-10"),
	}

	ranges := CoalesceDays(days)
	require.Len(t, ranges, 3)

	assert.Equal(t, day("2025-03-01"), ranges[0].CheckIn)
	assert.Equal(t, day("2025-03-04"), ranges[0].CheckOut)
	assert.Equal(t, day("2025-03-07"), ranges[1].CheckIn)
	assert.Equal(t, day("2025-03-08"), ranges[1].CheckOut)
	assert.Equal(t, day("2025-03-09"), ranges[2].CheckIn)
	assert.Equal(t, day("2025-03-11"), ranges[2].CheckOut)
}

func TestCoalesceDays_Empty(t *testing.T) {
	assert.Nil(t, CoalesceDays(nil))
}

func TestFeed_RendersBlockedSpans(t *testing.T) {
	dr, err := daterange.New(day("2025-03-01"), day("2025-03-04"))
	require.NoError(t, err)

	out := Feed("prop-1", "Sea View Studio", []Block{
		{Range: dr, Summary: "Booked"},
	}, time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC))

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR"))
	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "SUMMARY:Booked")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20250301")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20250304")
	assert.Contains(t, out, "prop-1-2025-03-01@aparthaven")
}

func TestFeed_NoBlocksStillValid(t *testing.T) {
	out := Feed("prop-1", "Sea View Studio", nil, time.Now())
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.NotContains(t, out, "BEGIN:VEVENT")
}
