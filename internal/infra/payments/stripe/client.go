package stripe

import (
	"encoding/json"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/refund"
	"github.com/stripe/stripe-go/v81/webhook"
)

var ErrInvalidSignature = errors.New("stripe: webhook signature verification failed")

// Client wraps the hosted payment-intent and checkout-session APIs. The
// processor owns card collection and the checkout UI; this service only
// consumes outcomes and metadata.
type Client struct {
	webhookSecret string
	successURL    string
	cancelURL     string
}

type Config struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.APIKey
	return &Client{
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

// Intent is a created payment intent the client completes on its side.
type Intent struct {
	ID           string
	ClientSecret string
}

// CreateIntent opens a payment intent for the online portion of a booking.
// Amount is in minor units. Metadata travels back on the webhook unchanged.
func (c *Client) CreateIntent(amount int64, currency string, paymentType string, metadata map[string]string) (Intent, error) {
	if amount <= 0 {
		return Intent{}, fmt.Errorf("stripe: intent amount must be positive, got %d", amount)
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("payment_type", paymentType)
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, err
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// CheckoutInput describes a hosted checkout session for a stay.
type CheckoutInput struct {
	UnitAmount    int64
	Currency      string
	Nights        int64
	PropertyID    string
	PropertyTitle string
	GuestEmail    string
	Metadata      map[string]string
}

// CheckoutSession is the redirect target handed back to the client.
type CheckoutSession struct {
	ID  string
	URL string
}

func (c *Client) CreateCheckoutSession(in CheckoutInput) (CheckoutSession, error) {
	if in.Nights <= 0 {
		return CheckoutSession{}, fmt.Errorf("stripe: checkout requires at least one night, got %d", in.Nights)
	}
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.successURL),
		CancelURL:  stripe.String(c.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(in.Nights),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(in.Currency),
					UnitAmount: stripe.Int64(in.UnitAmount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.PropertyTitle),
					},
				},
			},
		},
	}
	if in.GuestEmail != "" {
		params.CustomerEmail = stripe.String(in.GuestEmail)
	}
	params.AddMetadata("property_id", in.PropertyID)
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	s, err := session.New(params)
	if err != nil {
		return CheckoutSession{}, err
	}
	return CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// SessionStatus is the outcome of a hosted checkout session, consumed by the
// client-poll confirmation path and by the webhook path alike.
type SessionStatus struct {
	ID            string
	Paid          bool
	PaymentRef    string
	AmountTotal   int64
	Currency      string
	CustomerEmail string
	CustomerName  string
	Metadata      map[string]string
}

// Session polls a checkout session by id.
func (c *Client) Session(id string) (SessionStatus, error) {
	s, err := session.Get(id, nil)
	if err != nil {
		return SessionStatus{}, err
	}
	return sessionStatus(s), nil
}

// Refund returns money against a payment intent. A zero amount refunds in full.
func (c *Client) Refund(paymentRef string, amount int64) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentRef)}
	if amount > 0 {
		params.Amount = stripe.Int64(amount)
	}
	_, err := refund.New(params)
	return err
}

// VerifyWebhook checks the signature before any parsing happens. Payloads
// that fail verification must never be processed.
func (c *Client) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// CheckoutCompleted extracts the session from a verified checkout.session.completed event.
func CheckoutCompleted(event stripe.Event) (SessionStatus, bool, error) {
	if event.Type != "checkout.session.completed" {
		return SessionStatus{}, false, nil
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return SessionStatus{}, false, fmt.Errorf("stripe: checkout event decode: %w", err)
	}
	return sessionStatus(&s), true, nil
}

func sessionStatus(s *stripe.CheckoutSession) SessionStatus {
	status := SessionStatus{
		ID:          s.ID,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: s.AmountTotal,
		Currency:    string(s.Currency),
		Metadata:    s.Metadata,
	}
	if s.PaymentIntent != nil {
		status.PaymentRef = s.PaymentIntent.ID
	}
	if s.CustomerDetails != nil {
		status.CustomerEmail = s.CustomerDetails.Email
		status.CustomerName = s.CustomerDetails.Name
	}
	return status
}
