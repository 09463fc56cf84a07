package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"aparthaven/internal/infra/config"
	"aparthaven/internal/infra/obs"
)

type AvailabilityHTTP interface {
	Calendar(c *gin.Context)
	Quote(c *gin.Context)
	CalendarFeed(c *gin.Context)
}

type AdminHTTP interface {
	UpsertAvailability(c *gin.Context)
	ListBookings(c *gin.Context)
	MarkCashReceived(c *gin.Context)
	CancelBooking(c *gin.Context)
}

type PaymentsHTTP interface {
	CreateIntent(c *gin.Context)
	CreateCheckoutSession(c *gin.Context)
	PollSession(c *gin.Context)
}

type WebhookHTTP interface {
	HandleStripe(c *gin.Context)
}

type Handlers struct {
	Availability    AvailabilityHTTP
	Admin           AdminHTTP
	Payments        PaymentsHTTP
	Webhook         WebhookHTTP
	AdminMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Stripe-Signature"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Availability != nil {
		api.GET("/properties/:id/availability", h.Availability.Calendar)
		api.POST("/properties/:id/quote", h.Availability.Quote)
		api.GET("/properties/:id/calendar.ics", h.Availability.CalendarFeed)
	}
	if h.Payments != nil {
		api.POST("/payments/intent", h.Payments.CreateIntent)
		api.POST("/payments/checkout-session", h.Payments.CreateCheckoutSession)
		api.GET("/payments/session/:id", h.Payments.PollSession)
	}
	if h.Webhook != nil {
		api.POST("/webhooks/stripe", h.Webhook.HandleStripe)
	}
	if h.Admin != nil {
		guard := h.AdminMiddleware
		if guard == nil {
			guard = func(c *gin.Context) { c.Next() }
		}
		api.PUT("/properties/:id/availability/:date", guard, h.Admin.UpsertAvailability)

		adminGroup := api.Group("/admin", guard)
		adminGroup.GET("/properties/:id/bookings", h.Admin.ListBookings)
		adminGroup.POST("/bookings/:id/cash-received", h.Admin.MarkCashReceived)
		adminGroup.POST("/bookings/:id/cancel", h.Admin.CancelBooking)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

// AdminAuth guards admin routes with a static bearer token. Real identity is
// the auth provider's job; this is just a shared-secret gate for the panel.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin access disabled"})
			return
		}
		header := c.GetHeader("Authorization")
		if header != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
