package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commerce-core/internal/cache"
	"commerce-core/internal/config"
	"commerce-core/internal/database"
	"commerce-core/internal/events"
	"commerce-core/internal/evidence"
	"commerce-core/internal/fulfillment"
	"commerce-core/internal/handler"
	"commerce-core/internal/intake"
	"commerce-core/internal/metrics"
	"commerce-core/internal/pricing"
	"commerce-core/internal/repository"
	"commerce-core/internal/router"
	"commerce-core/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting commerce-core API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	stockRepo := repository.NewStockRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	membershipRepo := repository.NewMembershipRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	refundRepo := repository.NewRefundRepository(pool, logger)
	claimRepo := repository.NewIdempotencyRepository(pool, logger)

	idempotencyCache, closeCache, err := newIdempotencyCache(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	// Initialize the event bus
	publisher, err := events.NewPublisher(cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize events publisher: %w", err)
	}
	bus := events.NewBus(publisher, cfg.Events.Producer, logger)
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close events publisher")
		}
	}()
	logger.Info().Str("driver", cfg.Events.Driver).Msg("events publisher ready")

	m := metrics.New()
	evidenceStore := evidence.NewStore(ctx, cfg.Evidence, logger)

	scheduler := fulfillment.NewScheduler(orderRepo, bus, cfg.Checkout.DeliveryDelay, logger)
	defer scheduler.Close()
	if err := scheduler.Recover(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to reschedule pending deliveries")
	}

	purger := service.NewClaimPurger(claimRepo, cfg.Checkout.PurgeInterval, logger)
	purger.Start(ctx)
	defer purger.Close()

	// Initialize services
	tiers := pricing.DefaultTiers()
	productService := service.NewProductService(productRepo, stockRepo, logger)
	stockService := service.NewStockService(stockRepo, cfg.Checkout.TxTimeout, logger)
	cartService := service.NewCartService(
		cartRepo,
		productRepo,
		membershipRepo,
		stockService,
		repository.NewCatalogResolver(productRepo),
		tiers,
		cfg.Pricing.BaseShippingFee,
		logger,
	)
	checkoutService := service.NewCheckoutService(service.CheckoutDependencies{
		Carts:       cartRepo,
		Products:    productRepo,
		Stock:       stockRepo,
		Memberships: membershipRepo,
		Orders:      orderRepo,
		Claims:      claimRepo,
		Cache:       idempotencyCache,
		Scheduler:   scheduler,
		Events:      bus,
		Metrics:     m,
	}, service.CheckoutOptions{
		TxTimeout:       cfg.Checkout.TxTimeout,
		IdempotencyTTL:  cfg.Checkout.IdempotencyTTL,
		BaseShippingFee: cfg.Pricing.BaseShippingFee,
		Tiers:           tiers,
	}, logger)
	orderService := service.NewOrderService(orderRepo, refundRepo, stockRepo, bus, cfg.Checkout.TxTimeout, logger)
	refundService := service.NewRefundService(refundRepo, orderRepo, stockRepo, bus, m, cfg.Refund.TxTimeout, logger)

	intakeDeps := intake.Dependencies{
		Lines:    orderRepo,
		Ledger:   refundService,
		Evidence: evidenceStore,
		Events:   bus,
		Metrics:  m,
	}
	if url := cfg.Collaborators.ClassifierURL; url != "" {
		intakeDeps.Classifier = intake.NewHTTPClassifier(url, cfg.Collaborators.Timeout)
	}
	if url := cfg.Collaborators.MatcherURL; url != "" {
		intakeDeps.Matcher = intake.NewHTTPMatcher(url, cfg.Collaborators.Timeout)
	}
	if intakeDeps.Classifier == nil || intakeDeps.Matcher == nil {
		logger.Warn().Msg("classifier or matcher not configured, refund intake will escalate every request")
	}
	workflow := intake.NewWorkflow(intakeDeps, intake.Thresholds{
		Defect: cfg.Refund.DefectThreshold,
		Match:  cfg.Refund.MatchThreshold,
	}, logger)

	// Initialize router
	mux := router.New(router.Handlers{
		Products: handler.NewProductHandler(productService, logger),
		Cart:     handler.NewCartHandler(cartService, logger),
		Stock:    handler.NewStockHandler(stockService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		Refunds:  handler.NewRefundHandler(refundService, workflow, cfg.Refund.MaxImageBytes, logger),
	}, router.Options{
		APIKey:         cfg.Auth.APIKey,
		RequestTimeout: cfg.Server.RequestTimeout,
		Metrics:        m,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newIdempotencyCache connects to Redis when enabled. Without Redis the
// claim table alone answers retried checkouts.
func newIdempotencyCache(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (cache.IdempotencyCache, func(), error) {
	if !cfg.Enabled {
		logger.Info().Msg("idempotency cache disabled, using database claims only")
		return cache.NopIdempotencyCache{}, func() {}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info().Str("addr", cfg.Addr).Msg("idempotency cache connected")

	return cache.NewRedisIdempotencyCache(client, logger), func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}, nil
}
