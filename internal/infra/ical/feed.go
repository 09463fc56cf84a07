package ical

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
)

// Block is one contiguous unavailable span shown on the exported feed.
type Block struct {
	UID     string
	Range   daterange.DateRange
	Summary string
}

// Feed renders a read-only calendar of blocked dates for one property, the
// format external calendar apps subscribe to.
func Feed(id property.PropertyID, title string, blocks []Block, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//aparthaven//availability//EN")
	cal.SetXWRCalName(fmt.Sprintf("%s - blocked dates", title))

	for _, block := range blocks {
		uid := block.UID
		if uid == "" {
			uid = fmt.Sprintf("%s-%s@aparthaven", id, daterange.Key(block.Range.CheckIn))
		}
		event := cal.AddEvent(uid)
		event.SetDtStampTime(now.UTC())
		event.SetAllDayStartAt(daterange.Day(block.Range.CheckIn))
		// DTEND is exclusive in the calendar format, matching the range.
		event.SetAllDayEndAt(daterange.Day(block.Range.CheckOut))
		summary := block.Summary
		if summary == "" {
			summary = "Not available"
		}
		event.SetSummary(summary)
	}
	return cal.Serialize()
}

// CoalesceDays folds consecutive blocked days into contiguous blocks.
func CoalesceDays(days []time.Time) []daterange.DateRange {
	if len(days) == 0 {
		return nil
	}
	var out []daterange.DateRange
	start := daterange.Day(days[0])
	prev := start
	for _, d := range days[1:] {
		day := daterange.Day(d)
		if day.Equal(prev.AddDate(0, 0, 1)) {
			prev = day
			continue
		}
		out = append(out, daterange.DateRange{CheckIn: start, CheckOut: prev.AddDate(0, 0, 1)})
		start = day
		prev = day
	}
	out = append(out, daterange.DateRange{CheckIn: start, CheckOut: prev.AddDate(0, 0, 1)})
	return out
}
