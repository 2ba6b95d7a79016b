package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/mishramart/internal/domain/coupon"
	"github.com/xenking/mishramart/internal/domain/order"
	"github.com/xenking/mishramart/internal/domain/pricing"
	"github.com/xenking/mishramart/internal/domain/product"
	"github.com/xenking/mishramart/internal/domain/wishlist"
	"github.com/xenking/mishramart/internal/events"
	"github.com/xenking/mishramart/internal/handler"
	"github.com/xenking/mishramart/internal/payment"
	"github.com/xenking/mishramart/internal/storage/postgres"
	"github.com/xenking/mishramart/internal/storage/redis"
	"github.com/xenking/mishramart/pkg/health"
	"github.com/xenking/mishramart/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", health.PostgresCheck(pool), health.Timeout(5*time.Second))
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000), health.Timeout(time.Second))

	// Repositories.
	var products product.Repository = postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	wishlistRepo := postgres.NewWishlistRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Coupon attempts are limited per session across replicas when Redis is
	// available, per process otherwise.
	var couponStore httpmiddleware.RateStore
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		products = redis.NewCachedProducts(products, rdb, cfg.Catalog.CacheTTL, lg.Named("catalog"))
		// Product reads fall through to Postgres when the cache is down.
		healthSvc.Add(health.Readiness, "redis", health.RedisCheck(rdb), health.Optional())
		couponStore = redis.NewRateStore(rdb, "mishramart:ratelimit:coupon:")
	}

	brokers := events.ParseBrokers(cfg.Kafka.Brokers)
	publisher := events.New(brokers, cfg.Kafka.Topic)
	defer func() {
		if err := publisher.Close(); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}()
	if len(brokers) > 0 {
		// Events are best effort: a broker outage degrades readiness only.
		healthSvc.Add(health.Readiness, "kafka", health.KafkaCheck(brokers), health.Optional())
	}

	var gateway payment.Gateway = payment.Disabled{}
	if cfg.Razorpay.KeyID != "" {
		gateway = payment.NewRazorpay(payment.RazorpayConfig{
			KeyID:     cfg.Razorpay.KeyID,
			KeySecret: cfg.Razorpay.KeySecret,
			Currency:  cfg.Razorpay.Currency,
			Timeout:   cfg.Razorpay.Timeout,

			BreakerFailures: cfg.Razorpay.BreakerFailures,
			BreakerCooldown: cfg.Razorpay.BreakerCooldown,
		})
	} else {
		lg.Info("Online payments disabled: no gateway key configured")
	}

	fee, rate, err := cfg.Pricing.Values()
	if err != nil {
		return err
	}

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo)
	orderService := order.NewService(
		products,
		couponValidator,
		orderRepo,
		gateway,
		publisher,
		pricing.New(fee, rate),
		lg.Named("order"),
	)
	wishlistService := wishlist.NewService(wishlistRepo, products)

	// HTTP handlers.
	h := handler.NewHandler(handler.Config{
		ImageBaseURL: cfg.ImageBaseURL,
		Pepper:       []byte(cfg.APIKeyPepper),
		CouponRateLimit: httpmiddleware.RateLimitConfig{
			Max:    cfg.CouponLimit.Max,
			Window: cfg.CouponLimit.Window,
			Store:  couponStore,
		},
	}, handler.Deps{
		Products: products,
		Coupons:  couponValidator,
		Orders:   orderService,
		Wishlist: wishlistService,
		Sessions: sessionRepo,
		APIKeys:  apikeyRepo,
	})

	// Router: health endpoints + API routes on one server.
	router := h.Routes()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Order creation may wait on the payment gateway.
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After", "X-RateLimit-Remaining"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("mishramart-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
