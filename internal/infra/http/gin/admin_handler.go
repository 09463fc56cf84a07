package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"aparthaven/internal/app/admin"
	"aparthaven/internal/app/dto"
	"aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/booking"
	"aparthaven/internal/domain/property"
)

// AdminHandler exposes the host-panel routes behind the admin token gate.
type AdminHandler struct {
	Service *admin.Service
	Logger  *slog.Logger
}

type upsertDayRequest struct {
	availability.Override
	// Stage parks the edit in the preview cache instead of writing through.
	Stage bool `json:"stage"`
}

// UpsertAvailability handles PUT /admin/properties/:id/availability/:date.
func (h *AdminHandler) UpsertAvailability(c *gin.Context) {
	id := property.PropertyID(c.Param("id"))
	day, err := dto.ParseDay(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return
	}
	var req upsertDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	if req.Override.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one field must be set"})
		return
	}

	if req.Stage {
		if err := h.Service.StageOverride(c.Request.Context(), id, day, req.Override); err != nil {
			respondAdminError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"staged": true})
		return
	}

	rec, err := h.Service.UpsertDay(c.Request.Context(), id, day, req.Override)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapDay(rec))
}

// ListBookings handles GET /admin/properties/:id/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	items, err := h.Service.ListBookings(c.Request.Context(), property.PropertyID(c.Param("id")))
	if err != nil {
		respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapBookings(items))
}

// MarkCashReceived handles POST /admin/bookings/:id/cash-received.
func (h *AdminHandler) MarkCashReceived(c *gin.Context) {
	b, err := h.Service.MarkCashReceived(c.Request.Context(), booking.BookingID(c.Param("id")))
	if err != nil {
		respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapBooking(b))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelBooking handles POST /admin/bookings/:id/cancel. The online portion
// is refunded; a refund failure still leaves the booking cancelled and is
// reported for manual follow-up.
func (h *AdminHandler) CancelBooking(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	b, err := h.Service.CancelBooking(c.Request.Context(), booking.BookingID(c.Param("id")), req.Reason)
	if err != nil {
		if b != nil {
			c.JSON(http.StatusAccepted, gin.H{
				"booking": dto.MapBooking(b),
				"warning": "booking cancelled but the refund failed, refund manually",
			})
			return
		}
		respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapBooking(b))
}

func respondAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, property.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "property not found"})
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, booking.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, availability.ErrInvalidPrice), errors.Is(err, availability.ErrInvalidMinStay):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
