package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"aparthaven/internal/app/confirm"
	"aparthaven/internal/app/dto"
	"aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/booking"
	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/domain/shared/money"
	paystripe "aparthaven/internal/infra/payments/stripe"
)

// PaymentGateway is the slice of the processor client the payment flow needs.
type PaymentGateway interface {
	CreateIntent(amount int64, currency string, paymentType string, metadata map[string]string) (paystripe.Intent, error)
	CreateCheckoutSession(in paystripe.CheckoutInput) (paystripe.CheckoutSession, error)
	Session(id string) (paystripe.SessionStatus, error)
	Refund(paymentRef string, amount int64) error
}

// PaymentHandler prices a stay, opens a payment with the processor, and on
// the client-poll path confirms the booking once the session is paid.
type PaymentHandler struct {
	Gateway   PaymentGateway
	Resolver  *availability.Resolver
	Catalog   property.Catalog
	Confirmer *confirm.Confirmer
	Logger    *slog.Logger
}

type paymentRequest struct {
	PropertyID  string `json:"property_id" binding:"required"`
	CheckIn     string `json:"check_in" binding:"required"`
	CheckOut    string `json:"check_out" binding:"required"`
	GuestName   string `json:"guest_name"`
	GuestEmail  string `json:"guest_email" binding:"required"`
	PaymentType string `json:"payment_type"`
}

// pricedStay is a validated, priced payment request ready to hand to the
// processor.
type pricedStay struct {
	property *property.Property
	dr       daterange.DateRange
	total    money.Money
	split    booking.PaymentSplit
	typ      booking.PaymentType
	metadata map[string]string
	req      paymentRequest
}

// CreateIntent handles POST /payments/intent. The online portion of the
// total is charged; for partial payments that is half, rounded down, with
// the rest due in cash on arrival.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	stay, ok := h.price(c)
	if !ok {
		return
	}
	intent, err := h.Gateway.CreateIntent(stay.split.Online.Amount, stay.total.Currency, string(stay.typ), stay.metadata)
	if err != nil {
		h.respondGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"intent_id":     intent.ID,
		"client_secret": intent.ClientSecret,
		"total":         dto.MapMoney(stay.total),
		"online_amount": dto.MapMoney(stay.split.Online),
		"cash_amount":   dto.MapMoney(stay.split.Cash),
	})
}

// CreateCheckoutSession handles POST /payments/checkout-session, opening a
// hosted checkout page for the online portion.
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	stay, ok := h.price(c)
	if !ok {
		return
	}
	title := stay.property.Title
	if stay.typ == booking.PaymentPartial {
		title = fmt.Sprintf("%s (50%% now, rest in cash)", title)
	}
	// Full payments are itemized as nightly rate times night count. The
	// partial online portion is half the total and has no per-night
	// decomposition, so it goes through as a single line item; the same
	// fallback covers stays whose nightly rates vary.
	unit, nights := stay.split.Online.Amount, int64(1)
	if n := int64(stay.dr.Nights()); stay.typ == booking.PaymentFull && n > 0 && stay.total.Amount%n == 0 {
		unit, nights = stay.total.Amount/n, n
	}
	session, err := h.Gateway.CreateCheckoutSession(paystripe.CheckoutInput{
		UnitAmount:    unit,
		Currency:      stay.total.Currency,
		Nights:        nights,
		PropertyID:    string(stay.property.ID),
		PropertyTitle: fmt.Sprintf("%s, %d night stay", title, stay.dr.Nights()),
		GuestEmail:    stay.req.GuestEmail,
		Metadata:      stay.metadata,
	})
	if err != nil {
		h.respondGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":    session.ID,
		"checkout_url":  session.URL,
		"total":         dto.MapMoney(stay.total),
		"online_amount": dto.MapMoney(stay.split.Online),
		"cash_amount":   dto.MapMoney(stay.split.Cash),
	})
}

// PollSession handles GET /payments/session/:id. Clients landing on the
// success page call this; a paid session confirms the booking through the
// same path the webhook uses, so whichever arrives first wins and the other
// collapses onto the stored record.
func (h *PaymentHandler) PollSession(c *gin.Context) {
	status, err := h.Gateway.Session(c.Param("id"))
	if err != nil {
		h.respondGatewayError(c, err)
		return
	}
	if !status.Paid {
		c.JSON(http.StatusOK, gin.H{"paid": false})
		return
	}
	in, err := ConfirmInputFromSession(status)
	if err != nil {
		h.log().Error("paid session missing booking metadata", "session_id", status.ID, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "payment received but booking details are incomplete, contact support"})
		return
	}
	b, err := h.Confirmer.Confirm(c.Request.Context(), in)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment received but booking could not be recorded, contact support"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paid": true, "booking": dto.MapBooking(b)})
}

func (h *PaymentHandler) price(c *gin.Context) (pricedStay, bool) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "property_id, check_in, check_out and guest_email are required"})
		return pricedStay{}, false
	}
	typ := booking.PaymentType(strings.ToLower(req.PaymentType))
	if typ == "" {
		typ = booking.PaymentFull
	}
	if typ != booking.PaymentFull && typ != booking.PaymentPartial {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_type must be full or partial"})
		return pricedStay{}, false
	}

	in, err := daterange.ParseKey(req.CheckIn)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid check_in date, want YYYY-MM-DD"})
		return pricedStay{}, false
	}
	out, err := daterange.ParseKey(req.CheckOut)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid check_out date, want YYYY-MM-DD"})
		return pricedStay{}, false
	}
	dr, err := daterange.New(in, out)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return pricedStay{}, false
	}

	id := property.PropertyID(req.PropertyID)
	prop, err := h.Catalog.ByID(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return pricedStay{}, false
	}
	days, err := h.Resolver.Resolve(c.Request.Context(), id, dr.CheckIn, dr.CheckOut.AddDate(0, 0, -1))
	if err != nil {
		respondDomainError(c, err)
		return pricedStay{}, false
	}
	quote := availability.EvaluateRange(days, dr, prop.Defaults())
	if !quote.Available {
		conflicts := make([]string, 0, len(quote.Conflicts))
		for _, day := range quote.Conflicts {
			conflicts = append(conflicts, daterange.Key(day))
		}
		c.JSON(http.StatusConflict, gin.H{"error": "selected dates are no longer available", "conflicts": conflicts})
		return pricedStay{}, false
	}
	if !quote.MinimumStayMet {
		c.JSON(http.StatusConflict, gin.H{"error": "stay is shorter than the minimum required for these dates"})
		return pricedStay{}, false
	}

	split := booking.SplitFor(typ, quote.Total)
	return pricedStay{
		property: prop,
		dr:       dr,
		total:    quote.Total,
		split:    split,
		typ:      typ,
		metadata: bookingMetadata(id, dr, req, typ, quote.Total),
		req:      req,
	}, true
}

func (h *PaymentHandler) respondGatewayError(c *gin.Context, err error) {
	category, message := paystripe.Classify(err)
	h.log().Warn("payment gateway call failed", "category", category, "error", err)
	status := http.StatusBadGateway
	switch category {
	case paystripe.CategoryCard, paystripe.CategoryValidation, paystripe.CategoryInvalidRequest:
		status = http.StatusUnprocessableEntity
	case paystripe.CategoryRateLimit:
		status = http.StatusTooManyRequests
	}
	c.JSON(status, gin.H{"error": message, "category": category})
}

func (h *PaymentHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// bookingMetadata is the round-trip payload attached to the payment. The
// webhook and the session poll rebuild the confirmation input from it alone.
func bookingMetadata(id property.PropertyID, dr daterange.DateRange, req paymentRequest, typ booking.PaymentType, total money.Money) map[string]string {
	return map[string]string{
		"property_id":  string(id),
		"check_in":     daterange.Key(dr.CheckIn),
		"check_out":    daterange.Key(dr.CheckOut),
		"guest_name":   req.GuestName,
		"guest_email":  req.GuestEmail,
		"payment_type": string(typ),
		"total_cents":  strconv.FormatInt(total.Amount, 10),
		"currency":     total.Currency,
	}
}

// ConfirmInputFromSession rebuilds the confirmation input from a paid
// session's metadata, falling back to the processor's customer details for
// the guest identity.
func ConfirmInputFromSession(s paystripe.SessionStatus) (confirm.Input, error) {
	md := s.Metadata
	if md == nil {
		md = map[string]string{}
	}
	propertyID := md["property_id"]
	if propertyID == "" {
		return confirm.Input{}, fmt.Errorf("session %s: missing property_id metadata", s.ID)
	}
	in, err := daterange.ParseKey(md["check_in"])
	if err != nil {
		return confirm.Input{}, fmt.Errorf("session %s: bad check_in metadata: %w", s.ID, err)
	}
	out, err := daterange.ParseKey(md["check_out"])
	if err != nil {
		return confirm.Input{}, fmt.Errorf("session %s: bad check_out metadata: %w", s.ID, err)
	}
	dr, err := daterange.New(in, out)
	if err != nil {
		return confirm.Input{}, fmt.Errorf("session %s: %w", s.ID, err)
	}

	email := md["guest_email"]
	if email == "" {
		email = s.CustomerEmail
	}
	name := md["guest_name"]
	if name == "" {
		name = s.CustomerName
	}

	currency := strings.ToUpper(md["currency"])
	if currency == "" {
		currency = strings.ToUpper(s.Currency)
	}
	totalCents, err := strconv.ParseInt(md["total_cents"], 10, 64)
	if err != nil || totalCents <= 0 {
		// Older sessions may lack the explicit total; the processor's charge
		// amount is the online portion, which equals the total only for full
		// payments.
		if md["payment_type"] != string(booking.PaymentPartial) && s.AmountTotal > 0 {
			totalCents = s.AmountTotal
		} else {
			return confirm.Input{}, fmt.Errorf("session %s: bad total_cents metadata", s.ID)
		}
	}
	total, err := money.New(totalCents, currency)
	if err != nil {
		return confirm.Input{}, fmt.Errorf("session %s: %w", s.ID, err)
	}

	typ := booking.PaymentType(md["payment_type"])
	if typ != booking.PaymentPartial {
		typ = booking.PaymentFull
	}
	return confirm.Input{
		PropertyID:  property.PropertyID(propertyID),
		Range:       dr,
		Guest:       booking.Guest{Name: name, Email: email},
		Total:       total,
		PaymentType: typ,
		PaymentRef:  s.PaymentRef,
	}, nil
}
