package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aparthaven/internal/app/admin"
	"aparthaven/internal/app/confirm"
	"aparthaven/internal/app/outbox"
	"aparthaven/internal/domain/availability"
	"aparthaven/internal/infra/broker/kafka"
	"aparthaven/internal/infra/cache/redis"
	"aparthaven/internal/infra/config"
	"aparthaven/internal/infra/db/mongo"
	ginserver "aparthaven/internal/infra/http/gin"
	"aparthaven/internal/infra/obs"
	infraoutbox "aparthaven/internal/infra/outbox"
	paystripe "aparthaven/internal/infra/payments/stripe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	logger.Info("starting aparthaven", "env", cfg.Env, "addr", cfg.HTTPAddr)

	mongoClient, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Close(shutdownCtx)
	}()

	availabilityRepo := mongo.NewAvailabilityRepository(mongoClient.DB)
	bookingRepo := mongo.NewBookingRepository(mongoClient.DB)
	propertyCatalog := mongo.NewPropertyRepository(mongoClient.DB)
	outboxStore := mongo.NewOutboxStore(mongoClient.DB)

	indexCtx, cancelIndexes := context.WithTimeout(ctx, 30*time.Second)
	defer cancelIndexes()
	if err := availabilityRepo.EnsureIndexes(indexCtx); err != nil {
		logger.Error("availability indexes failed", "error", err)
		os.Exit(1)
	}
	if err := bookingRepo.EnsureIndexes(indexCtx); err != nil {
		logger.Error("booking indexes failed", "error", err)
		os.Exit(1)
	}

	overrideCache := redis.NewOverrideCache(cfg.RedisAddr, 24*time.Hour, logger)
	defer overrideCache.Close()
	if err := overrideCache.Ping(ctx); err != nil {
		// The cache is advisory; calendars render without staged edits.
		logger.Warn("redis unreachable, staged overrides disabled for reads", "addr", cfg.RedisAddr, "error", err)
	}

	stripeClient := paystripe.NewClient(paystripe.Config{
		APIKey:        cfg.StripeKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
	})

	resolver := &availability.Resolver{
		Store:        availabilityRepo,
		Cache:        overrideCache,
		Catalog:      propertyCatalog,
		Logger:       logger,
		StoreTimeout: cfg.StoreTimeout,
	}
	confirmer := &confirm.Confirmer{
		Bookings: bookingRepo,
		Calendar: availabilityRepo,
		Outbox:   outboxStore,
		Encoder:  outbox.JSONEventEncoder{},
		Logger:   logger,
	}
	adminService := &admin.Service{
		Calendar: availabilityRepo,
		Cache:    overrideCache,
		Catalog:  propertyCatalog,
		Bookings: bookingRepo,
		Payments: stripeClient,
		Outbox:   outboxStore,
		Encoder:  outbox.JSONEventEncoder{},
		Logger:   logger,
	}

	health := obs.HealthHandlers{Ready: func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return mongoClient.Ping(pingCtx)
	}}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, health, ginserver.Handlers{
		Availability: &ginserver.AvailabilityHandler{Resolver: resolver, Catalog: propertyCatalog, Logger: logger},
		Admin:        &ginserver.AdminHandler{Service: adminService, Logger: logger},
		Payments: &ginserver.PaymentHandler{
			Gateway:   stripeClient,
			Resolver:  resolver,
			Catalog:   propertyCatalog,
			Confirmer: confirmer,
			Logger:    logger,
		},
		Webhook:         &ginserver.WebhookHandler{Verifier: stripeClient, Confirmer: confirmer, Logger: logger},
		AdminMiddleware: ginserver.AdminAuth(cfg.AdminToken),
	})

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		worker := &infraoutbox.Worker{
			Store:       outboxStore,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
		}
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	} else {
		logger.Warn("kafka not configured, domain events stay queued in the outbox")
	}

	go runCalendarRepair(ctx, confirmer, cfg.CalendarRepairEvery, logger)

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

// runCalendarRepair periodically re-blocks dates for confirmed bookings whose
// calendar writes did not finish.
func runCalendarRepair(ctx context.Context, confirmer *confirm.Confirmer, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		every = 30 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := confirmer.RepairCalendars(ctx); err != nil {
				logger.Error("calendar repair pass failed", "error", err)
			}
		}
	}
}
