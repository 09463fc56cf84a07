package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v81"

	"aparthaven/internal/app/admin"
	"aparthaven/internal/app/confirm"
	"aparthaven/internal/domain/availability"
	"aparthaven/internal/domain/booking"
	"aparthaven/internal/domain/property"
	"aparthaven/internal/domain/shared/daterange"
	"aparthaven/internal/domain/shared/money"
	"aparthaven/internal/infra/config"
	"aparthaven/internal/infra/obs"
	paystripe "aparthaven/internal/infra/payments/stripe"
	"aparthaven/internal/infra/storage/memory"
)

var testProp = property.Property{
	ID:          "prop-1",
	Title:       "Sea View Studio",
	City:        "Varna",
	BasePrice:   money.Must(8000, "EUR"),
	MinimumStay: 2,
}

type fakeGateway struct {
	intents   []paystripe.Intent
	checkouts []paystripe.CheckoutInput
	sessions  map[string]paystripe.SessionStatus
	err       error
}

func (f *fakeGateway) CreateIntent(amount int64, currency string, paymentType string, metadata map[string]string) (paystripe.Intent, error) {
	if f.err != nil {
		return paystripe.Intent{}, f.err
	}
	intent := paystripe.Intent{ID: fmt.Sprintf("pi_%d", len(f.intents)+1), ClientSecret: "cs_secret"}
	f.intents = append(f.intents, intent)
	return intent, nil
}

func (f *fakeGateway) CreateCheckoutSession(in paystripe.CheckoutInput) (paystripe.CheckoutSession, error) {
	if f.err != nil {
		return paystripe.CheckoutSession{}, f.err
	}
	f.checkouts = append(f.checkouts, in)
	return paystripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
}

func (f *fakeGateway) Session(id string) (paystripe.SessionStatus, error) {
	if f.err != nil {
		return paystripe.SessionStatus{}, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return paystripe.SessionStatus{}, &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Param: "id"}
	}
	return s, nil
}

func (f *fakeGateway) Refund(ref string, amount int64) error { return f.err }

type fakeVerifier struct {
	event stripe.Event
	err   error
}

func (f *fakeVerifier) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	if f.err != nil {
		return stripe.Event{}, f.err
	}
	return f.event, nil
}

type env struct {
	server   *http.Server
	gateway  *fakeGateway
	verifier *fakeVerifier
	calendar *memory.AvailabilityRepository
	bookings *memory.BookingRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calendar := memory.NewAvailabilityRepository()
	bookings := memory.NewBookingRepository()
	catalog := memory.NewPropertyCatalog(testProp)
	outboxStore := memory.NewOutboxStore()
	now := func() time.Time { return day("2025-02-01") }

	resolver := &availability.Resolver{
		Store:   calendar,
		Catalog: catalog,
		Logger:  logger,
		Now:     now,
	}
	confirmer := &confirm.Confirmer{
		Bookings: bookings,
		Calendar: calendar,
		Outbox:   outboxStore,
		Logger:   logger,
		Now:      now,
	}
	gateway := &fakeGateway{sessions: map[string]paystripe.SessionStatus{}}
	verifier := &fakeVerifier{}
	adminSvc := &admin.Service{
		Calendar: calendar,
		Cache:    memory.NewOverrideCache(),
		Catalog:  catalog,
		Bookings: bookings,
		Payments: gateway,
		Outbox:   outboxStore,
		Logger:   logger,
		Now:      now,
	}

	cfg := config.Config{Env: "test", HTTPAddr: ":0", AdminToken: "secret"}
	server := NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{}, Handlers{
		Availability: &AvailabilityHandler{Resolver: resolver, Catalog: catalog, Logger: logger, Now: now},
		Admin:        &AdminHandler{Service: adminSvc, Logger: logger},
		Payments: &PaymentHandler{
			Gateway:   gateway,
			Resolver:  resolver,
			Catalog:   catalog,
			Confirmer: confirmer,
			Logger:    logger,
		},
		Webhook:         &WebhookHandler{Verifier: verifier, Confirmer: confirmer, Logger: logger},
		AdminMiddleware: AdminAuth(cfg.AdminToken),
	})
	return &env{server: server, gateway: gateway, verifier: verifier, calendar: calendar, bookings: bookings}
}

func day(s string) time.Time {
	t, err := daterange.ParseKey(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (e *env) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into))
}

func TestCalendar_DefaultsWindow(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/api/v1/properties/prop-1/availability?from=2025-03-01&to=2025-03-05", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		PropertyID string `json:"property_id"`
		Days       []struct {
			Date      string `json:"date"`
			Available bool   `json:"is_available"`
		} `json:"days"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "prop-1", resp.PropertyID)
	require.Len(t, resp.Days, 5)
	assert.Equal(t, "2025-03-01", resp.Days[0].Date)
	assert.True(t, resp.Days[0].Available)
}

func TestCalendar_BadDate(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/v1/properties/prop-1/availability?from=tomorrow", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendar_UnknownProperty(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/v1/properties/ghost/availability", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuote_ReportsConflicts(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.calendar.Put(context.Background(), testProp.ID, availability.DayRecord{
		Date: day("2025-03-02"), Available: false, Price: testProp.BasePrice, MinimumStay: 1,
	}))

	w := e.do(t, http.MethodPost, "/api/v1/properties/prop-1/quote", map[string]string{
		"check_in":  "2025-03-01",
		"check_out": "2025-03-04",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var quote struct {
		Nights    int      `json:"nights"`
		Available bool     `json:"is_available"`
		Conflicts []string `json:"conflicts"`
		Total     struct {
			Amount int64 `json:"amount"`
		} `json:"total_price"`
	}
	decode(t, w, &quote)
	assert.Equal(t, 3, quote.Nights)
	assert.False(t, quote.Available)
	assert.Equal(t, []string{"2025-03-02"}, quote.Conflicts)
	assert.Equal(t, int64(24000), quote.Total.Amount)
}

func TestQuote_ZeroNightStay(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/v1/properties/prop-1/quote", map[string]string{
		"check_in":  "2025-03-01",
		"check_out": "2025-03-01",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var quote struct {
		Nights         int  `json:"nights"`
		MinimumStayMet bool `json:"minimum_stay_met"`
	}
	decode(t, w, &quote)
	assert.Equal(t, 0, quote.Nights)
	assert.False(t, quote.MinimumStayMet)
}

func TestCreateIntent_ChargesOnlinePortion(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/v1/payments/intent", map[string]string{
		"property_id":  "prop-1",
		"check_in":     "2025-03-01",
		"check_out":    "2025-03-04",
		"guest_email":  "ana@example.com",
		"payment_type": "partial",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		ClientSecret string `json:"client_secret"`
		Online       struct {
			Amount int64 `json:"amount"`
		} `json:"online_amount"`
		Cash struct {
			Amount int64 `json:"amount"`
		} `json:"cash_amount"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "cs_secret", resp.ClientSecret)
	assert.Equal(t, int64(12000), resp.Online.Amount)
	assert.Equal(t, int64(12000), resp.Cash.Amount)
}

func TestCreateCheckoutSession_FullPaymentItemizesNights(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/v1/payments/checkout-session", map[string]string{
		"property_id": "prop-1",
		"check_in":    "2025-03-01",
		"check_out":   "2025-03-04",
		"guest_email": "ana@example.com",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, e.gateway.checkouts, 1)
	in := e.gateway.checkouts[0]
	assert.Equal(t, int64(8000), in.UnitAmount, "nightly rate")
	assert.Equal(t, int64(3), in.Nights)
}

func TestCreateCheckoutSession_PartialPaymentSingleLineItem(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/v1/payments/checkout-session", map[string]string{
		"property_id":  "prop-1",
		"check_in":     "2025-03-01",
		"check_out":    "2025-03-04",
		"guest_email":  "ana@example.com",
		"payment_type": "partial",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, e.gateway.checkouts, 1)
	in := e.gateway.checkouts[0]
	assert.Equal(t, int64(12000), in.UnitAmount, "half the total, no per-night split")
	assert.Equal(t, int64(1), in.Nights)
	assert.Contains(t, in.PropertyTitle, "3 night stay")
}

func TestCreateIntent_BlockedDatesConflict(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.calendar.Put(context.Background(), testProp.ID, availability.DayRecord{
		Date: day("2025-03-02"), Available: false, Price: testProp.BasePrice, MinimumStay: 1,
	}))

	w := e.do(t, http.MethodPost, "/api/v1/payments/intent", map[string]string{
		"property_id": "prop-1",
		"check_in":    "2025-03-01",
		"check_out":   "2025-03-04",
		"guest_email": "ana@example.com",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateIntent_ShortStayConflict(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/v1/payments/intent", map[string]string{
		"property_id": "prop-1",
		"check_in":    "2025-03-01",
		"check_out":   "2025-03-02",
		"guest_email": "ana@example.com",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateIntent_GatewayCardError(t *testing.T) {
	e := newEnv(t)
	e.gateway.err = &stripe.Error{Type: stripe.ErrorTypeCard}

	w := e.do(t, http.MethodPost, "/api/v1/payments/intent", map[string]string{
		"property_id": "prop-1",
		"check_in":    "2025-03-01",
		"check_out":   "2025-03-04",
		"guest_email": "ana@example.com",
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Category string `json:"category"`
		Error    string `json:"error"`
	}
	decode(t, w, &resp)
	assert.Equal(t, string(paystripe.CategoryCard), resp.Category)
	assert.NotContains(t, resp.Error, "stripe")
}

func paidSession(ref string) paystripe.SessionStatus {
	return paystripe.SessionStatus{
		ID:         "cs_1",
		Paid:       true,
		PaymentRef: ref,
		Metadata: map[string]string{
			"property_id":  "prop-1",
			"check_in":     "2025-03-01",
			"check_out":    "2025-03-04",
			"guest_name":   "Ana",
			"guest_email":  "ana@example.com",
			"payment_type": "full",
			"total_cents":  "24000",
			"currency":     "EUR",
		},
	}
}

func TestPollSession_ConfirmsPaidBooking(t *testing.T) {
	e := newEnv(t)
	e.gateway.sessions["cs_1"] = paidSession("pi_1")

	w := e.do(t, http.MethodGet, "/api/v1/payments/session/cs_1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Paid    bool `json:"paid"`
		Booking struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"booking"`
	}
	decode(t, w, &resp)
	assert.True(t, resp.Paid)
	assert.Equal(t, string(booking.StateConfirmed), resp.Booking.Status)

	days, err := e.calendar.Range(context.Background(), testProp.ID, day("2025-03-01"), day("2025-03-03"))
	require.NoError(t, err)
	require.Len(t, days, 3)
	for _, rec := range days {
		assert.False(t, rec.Available)
	}
}

func TestPollSession_UnpaidReportsPending(t *testing.T) {
	e := newEnv(t)
	e.gateway.sessions["cs_1"] = paystripe.SessionStatus{ID: "cs_1", Paid: false}

	w := e.do(t, http.MethodGet, "/api/v1/payments/session/cs_1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Paid bool `json:"paid"`
	}
	decode(t, w, &resp)
	assert.False(t, resp.Paid)
}

func checkoutEvent(t *testing.T) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":             "cs_1",
		"payment_status": "paid",
		"payment_intent": "pi_1",
		"amount_total":   24000,
		"currency":       "eur",
		"metadata":       paidSession("pi_1").Metadata,
		"customer_details": map[string]string{
			"email": "ana@example.com",
			"name":  "Ana",
		},
	})
	require.NoError(t, err)
	return stripe.Event{Type: "checkout.session.completed", Data: &stripe.EventData{Raw: raw}}
}

func TestWebhook_BadSignature(t *testing.T) {
	e := newEnv(t)
	e.verifier.err = paystripe.ErrInvalidSignature

	w := e.do(t, http.MethodPost, "/api/v1/webhooks/stripe", map[string]string{}, map[string]string{
		"Stripe-Signature": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stored, err := e.bookings.ListByProperty(context.Background(), testProp.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestWebhook_PaidCheckoutConfirmsOnce(t *testing.T) {
	e := newEnv(t)
	e.verifier.event = checkoutEvent(t)

	first := e.do(t, http.MethodPost, "/api/v1/webhooks/stripe", map[string]string{}, nil)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	// redelivery of the same event collapses onto the stored booking
	second := e.do(t, http.MethodPost, "/api/v1/webhooks/stripe", map[string]string{}, nil)
	require.Equal(t, http.StatusOK, second.Code)

	stored, err := e.bookings.ListByProperty(context.Background(), testProp.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, booking.StateConfirmed, stored[0].State)
	assert.Equal(t, "pi_1", stored[0].PaymentRef)
}

func TestWebhook_IgnoresOtherEventTypes(t *testing.T) {
	e := newEnv(t)
	e.verifier.event = stripe.Event{Type: "invoice.paid", Data: &stripe.EventData{Raw: []byte(`{}`)}}

	w := e.do(t, http.MethodPost, "/api/v1/webhooks/stripe", map[string]string{}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/api/v1/admin/properties/prop-1/bookings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/admin/properties/prop-1/bookings", nil, map[string]string{
		"Authorization": "Bearer wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/admin/properties/prop-1/bookings", nil, map[string]string{
		"Authorization": "Bearer secret",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminUpsertAvailability(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPut, "/api/v1/properties/prop-1/availability/2025-03-10", map[string]any{
		"available": false,
		"note":      "Blocked: owner stay",
	}, map[string]string{"Authorization": "Bearer secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rec struct {
		Date      string `json:"date"`
		Available bool   `json:"is_available"`
		Note      string `json:"note"`
	}
	decode(t, w, &rec)
	assert.Equal(t, "2025-03-10", rec.Date)
	assert.False(t, rec.Available)
	assert.Equal(t, "Blocked: owner stay", rec.Note)

	stored, err := e.calendar.Range(context.Background(), testProp.ID, day("2025-03-10"), day("2025-03-10"))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].Available)
}

func TestAdminUpsertAvailability_EmptyBodyRejected(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPut, "/api/v1/properties/prop-1/availability/2025-03-10", map[string]any{},
		map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendarFeed(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.calendar.Put(context.Background(), testProp.ID, availability.DayRecord{
		Date: day("2025-03-02"), Available: false, Price: testProp.BasePrice, MinimumStay: 1, Note: "Booked: bk-1",
	}))

	w := e.do(t, http.MethodGet, "/api/v1/properties/prop-1/calendar.ics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, w.Body.String(), "DTSTART;VALUE=DATE:20250302")
}

func TestConfirmInputFromSession_MissingMetadata(t *testing.T) {
	_, err := ConfirmInputFromSession(paystripe.SessionStatus{ID: "cs_1", Paid: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "property_id")
}

func TestConfirmInputFromSession_FallsBackToCustomerDetails(t *testing.T) {
	s := paidSession("pi_9")
	delete(s.Metadata, "guest_email")
	delete(s.Metadata, "guest_name")
	s.CustomerEmail = "fallback@example.com"
	s.CustomerName = "Fallback Guest"

	in, err := ConfirmInputFromSession(s)
	require.NoError(t, err)
	assert.Equal(t, "fallback@example.com", in.Guest.Email)
	assert.Equal(t, "Fallback Guest", in.Guest.Name)
	assert.Equal(t, "pi_9", in.PaymentRef)
	assert.Equal(t, int64(24000), in.Total.Amount)
}
