package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boutique-backend/internal/application/address"
	"boutique-backend/internal/application/checkout"
	"boutique-backend/internal/application/handlers"
	"boutique-backend/internal/config"
	"boutique-backend/internal/domain/event"
	"boutique-backend/internal/infrastructure/bus"
	"boutique-backend/internal/infrastructure/eventstore"
	httpapi "boutique-backend/internal/infrastructure/http"
	"boutique-backend/internal/infrastructure/mongo"
	"boutique-backend/internal/infrastructure/payment"
	redisstore "boutique-backend/internal/infrastructure/redis"
	jwtutil "boutique-backend/pkg/jwt"
	"boutique-backend/pkg/middleware"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or could not be loaded")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting Boutique checkout API")

	// MongoDB
	mongoClient, err := mongo.NewMongoClient(&mongo.MongoConfig{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
		Timeout:  cfg.MongoTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Close(); err != nil {
			logger.Error("Error closing MongoDB connection", zap.Error(err))
		}
	}()
	logger.Info("Connected to MongoDB")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	// Event store
	database := mongoClient.GetDatabase()
	store := eventstore.NewMongoEventStore(mongoClient.GetClient(), database)
	{
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoTimeout)
		if err := store.EnsureIndexes(ctx); err != nil {
			cancel()
			logger.Fatal("Failed to create event store indexes", zap.Error(err))
		}
		cancel()
	}

	// Event bus and subscribers
	eventBus := bus.NewEventBus(logger)
	auditLogger := handlers.NewAuditLogger(logger)
	notifier := handlers.NewOrderConfirmationNotifier(handlers.NewLogMailer(logger), logger)

	for _, eventType := range []string{
		event.TypeCheckoutSessionCreated,
		event.TypeOrderPaid,
		event.TypeOrderPaymentFailed,
	} {
		eventBus.Subscribe(eventType, auditLogger)
	}
	eventBus.Subscribe(event.TypeOrderPaid, notifier)

	// Repositories
	orderRepo := mongo.NewMongoOrderRepository(database)
	cartRepo := redisstore.NewCachedCartRepository(
		redisClient,
		mongo.NewMongoCartRepository(database),
		cfg.CartCacheTTL,
		logger,
	)

	// Payment provider
	stripeService, err := payment.NewStripeService(&payment.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
	})
	if err != nil {
		logger.Fatal("Failed to initialize Stripe", zap.Error(err))
	}

	// Checkout orchestrator
	checkoutService := checkout.NewService(
		address.NewValidator(),
		cartRepo,
		orderRepo,
		store,
		eventBus,
		stripeService,
		auditLogger,
		checkout.Config{
			Currency:        cfg.Currency,
			ProviderTimeout: cfg.PaymentCallTimeout,
			Retry: checkout.RetryPolicy{
				MaxAttempts: cfg.PaymentMaxAttempts,
				BaseDelay:   cfg.PaymentBaseDelay,
				MaxDelay:    2 * time.Second,
				Jitter:      0.2,
			},
		},
		logger,
	)

	// HTTP surface
	jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer)
	router := httpapi.NewRouter(httpapi.RouterDeps{
		Checkout:   httpapi.NewHTTPCheckoutController(checkoutService),
		Webhook:    httpapi.NewHTTPWebhookController(checkoutService),
		Admin:      httpapi.NewHTTPAdminController(store, eventBus),
		JWTManager: jwtManager,
		RoleGuard:  middleware.NewRoleGuard(auditLogger),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	// Drain in-flight event handlers before exiting
	eventBus.Wait()
	logger.Info("Server stopped")
}
