package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"aparthaven/internal/app/dto"
	"aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/infra/ical"
)

const (
	defaultCalendarWindowDays = 60
	icalFeedWindowDays        = 365
)

// AvailabilityHandler serves the public calendar, quotes and the iCal feed.
type AvailabilityHandler struct {
	Resolver *availability.Resolver
	Catalog  property.Catalog
	Logger   *slog.Logger
	Now      func() time.Time
}

// Calendar handles GET /properties/:id/availability?from=&to=.
// Missing bounds default to a window starting today.
func (h *AvailabilityHandler) Calendar(c *gin.Context) {
	id := property.PropertyID(c.Param("id"))
	today := daterange.Day(h.now())

	from := today
	if raw := c.Query("from"); raw != "" {
		parsed, err := dto.ParseDay(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, want YYYY-MM-DD"})
			return
		}
		from = parsed
	}
	to := from.AddDate(0, 0, defaultCalendarWindowDays-1)
	if raw := c.Query("to"); raw != "" {
		parsed, err := dto.ParseDay(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, want YYYY-MM-DD"})
			return
		}
		to = parsed
	}

	days, err := h.Resolver.Resolve(c.Request.Context(), id, from, to)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapCalendar(string(id), days))
}

type quoteRequest struct {
	CheckIn  string `json:"check_in" binding:"required"`
	CheckOut string `json:"check_out" binding:"required"`
}

// Quote handles POST /properties/:id/quote. Check-in equal to check-out is a
// legal zero-night request and prices to zero.
func (h *AvailabilityHandler) Quote(c *gin.Context) {
	id := property.PropertyID(c.Param("id"))
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "check_in and check_out are required"})
		return
	}
	dr, err := parseStayRange(req.CheckIn, req.CheckOut)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prop, err := h.Catalog.ByID(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	quote, err := h.evaluate(c, id, prop, dr)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapQuote(quote))
}

// CalendarFeed handles GET /properties/:id/calendar.ics, a read-only export
// of blocked dates for external calendar apps.
func (h *AvailabilityHandler) CalendarFeed(c *gin.Context) {
	id := property.PropertyID(c.Param("id"))
	prop, err := h.Catalog.ByID(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	now := h.now()
	from := daterange.Day(now)
	to := from.AddDate(0, 0, icalFeedWindowDays)
	days, err := h.Resolver.Resolve(c.Request.Context(), id, from, to)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	var blockedDays []time.Time
	for _, rec := range days {
		if !rec.Available {
			blockedDays = append(blockedDays, rec.Date)
		}
	}
	blocks := make([]ical.Block, 0)
	for _, dr := range ical.CoalesceDays(blockedDays) {
		blocks = append(blocks, ical.Block{Range: dr})
	}

	c.Header("Content-Type", "text/calendar; charset=utf-8")
	c.String(http.StatusOK, ical.Feed(id, prop.Title, blocks, now))
}

func (h *AvailabilityHandler) evaluate(c *gin.Context, id property.PropertyID, prop *property.Property, dr daterange.DateRange) (availability.Quote, error) {
	if dr.IsEmpty() {
		return availability.EvaluateRange(nil, dr, prop.Defaults()), nil
	}
	lastNight := dr.CheckOut.AddDate(0, 0, -1)
	days, err := h.Resolver.Resolve(c.Request.Context(), id, dr.CheckIn, lastNight)
	if err != nil {
		return availability.Quote{}, err
	}
	return availability.EvaluateRange(days, dr, prop.Defaults()), nil
}

func (h *AvailabilityHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// parseStayRange parses a check-in/check-out pair, allowing the zero-night
// case where both days are equal.
func parseStayRange(checkIn, checkOut string) (daterange.DateRange, error) {
	in, err := daterange.ParseKey(checkIn)
	if err != nil {
		return daterange.DateRange{}, err
	}
	out, err := daterange.ParseKey(checkOut)
	if err != nil {
		return daterange.DateRange{}, err
	}
	if in.Equal(out) {
		return daterange.Empty(in), nil
	}
	return daterange.New(in, out)
}

func respondDomainError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, property.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "property not found"})
	case errors.Is(err, daterange.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
