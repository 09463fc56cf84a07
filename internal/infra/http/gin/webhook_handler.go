package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v81"

	"aparthaven/internal/app/confirm"
	paystripe "aparthaven/internal/infra/payments/stripe"
)

// WebhookVerifier checks a raw payload's signature before any parsing.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error)
}

// WebhookHandler receives processor callbacks. A bad signature is rejected
// outright; a processing failure returns non-2xx so the processor redelivers,
// which is safe because confirmation is idempotent on the booking key.
type WebhookHandler struct {
	Verifier  WebhookVerifier
	Confirmer *confirm.Confirmer
	Logger    *slog.Logger
}

// HandleStripe handles POST /webhooks/stripe.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}
	event, err := h.Verifier.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.log().Warn("webhook signature rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	session, matched, err := paystripe.CheckoutCompleted(event)
	if err != nil {
		h.log().Error("webhook event decode failed", "event_type", event.Type, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}
	if !matched {
		// Unhandled event types are acknowledged so the processor stops
		// redelivering them.
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if !session.Paid {
		h.log().Info("checkout completed without payment, ignoring", "session_id", session.ID)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	in, err := ConfirmInputFromSession(session)
	if err != nil {
		// Metadata this service attached is missing; redelivery cannot fix
		// that, so acknowledge and leave a trail for the operator.
		h.log().Error("paid webhook missing booking metadata", "session_id", session.ID, "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if _, err := h.Confirmer.Confirm(c.Request.Context(), in); err != nil {
		h.log().Error("webhook confirmation failed, requesting redelivery", "session_id", session.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
