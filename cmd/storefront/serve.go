package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/mw"
	"storefront/internal/service"
	"storefront/internal/worker"
)

const (
	rateWindow    = 15 * time.Minute
	apiRateLimit  = 100
	authRateLimit = 5
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the order event relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			setupLogger(cfg.LogLevel)
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDB(ctx, cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer database.CloseDB(db)

	if err := database.InitSchema(ctx, db); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	rdb := service.NewRedisClient(cfg.RedisAddr)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	mailer, err := service.NewSMTPMailer(service.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if err != nil {
		return err
	}

	// Services
	stripeClient := service.NewStripeClient(cfg.StripeSecretKey, cfg.ProviderTimeout)
	authSvc := service.NewAuthService(db, cfg.JWTSecret)
	productSvc := service.NewProductService(db)
	orderSvc := service.NewOrderService(db, cfg.OrderEventsTopic)
	cartSvc := service.NewCartService(service.NewRedisCartStore(rdb), productSvc)
	checkoutSvc := service.NewCheckoutService(productSvc, cartSvc, stripeClient, cfg.ClientURL)
	dispatcher := service.NewDispatcher(mailer, cfg.AdminEmail, cfg.MailTimeout, m)
	reconciler := service.NewReconciler(cfg.StripeWebhookSecret, orderSvc, stripeClient, dispatcher, m)

	// Worker
	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewPublisher(cfg.KafkaBrokers)
		defer publisher.Close()
		relay := worker.NewOutboxRelay(service.NewOutboxService(db), publisher)
		go relay.Start(ctx)
	} else {
		slog.Warn("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	apiLimiter := mw.NewRateLimiter(apiRateLimit, rateWindow, "Too many requests, please try again later.")
	authLimiter := mw.NewRateLimiter(authRateLimit, rateWindow, "Too many login attempts, please try again later.")
	go sweepLimiters(ctx, apiLimiter, authLimiter)

	r := newRouter(cfg, routerDeps{
		db:        db,
		registry:  reg,
		metrics:   m,
		accounts:  authSvc,
		tokens:    authSvc,
		catalog:   productSvc,
		carts:     cartSvc,
		checkouts: checkoutSvc,
		orders:    orderSvc,
		events:    reconciler,
		apiLimit:  apiLimiter,
		authLimit: authLimiter,
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Minute,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("shutting down...")

	cancel() // stop workers
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

type routerDeps struct {
	db        handler.Pinger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	accounts  handler.Accounts
	tokens    mw.TokenParser
	catalog   handler.Catalog
	carts     handler.Carts
	checkouts handler.Checkouts
	orders    handler.Orders
	events    handler.EventHandler
	apiLimit  *mw.RateLimiter
	authLimit *mw.RateLimiter
}

func newRouter(cfg *config.Config, d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	useClientIP(r, cfg.TrustProxy)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mw.Metrics(d.metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", handler.HealthHandler(d.db))
	r.Handle("/metrics", metrics.Handler(d.registry))

	auth := mw.Auth(d.tokens)
	secureCookie := strings.HasPrefix(cfg.ClientURL, "https://")

	r.Route("/api", func(r chi.Router) {
		r.Use(d.apiLimit.Handler)

		r.Post("/stripe/webhook", handler.StripeWebhookHandler(d.events))

		// Public routes
		r.With(d.authLimit.Handler).Post("/auth/register", handler.RegisterHandler(d.accounts))
		r.With(d.authLimit.Handler).Post("/auth/login", handler.LoginHandler(d.accounts, secureCookie))
		r.Post("/auth/logout", handler.LogoutHandler())
		r.Get("/products", handler.ListProductsHandler(d.catalog))
		r.Get("/products/{id}", handler.GetProductHandler(d.catalog))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Get("/auth/profile", handler.ProfileHandler(d.accounts))
			r.Put("/auth/profile", handler.UpdateProfileHandler(d.accounts))

			r.Get("/cart", handler.GetCartHandler(d.carts))
			r.Delete("/cart", handler.ClearCartHandler(d.carts))
			r.Post("/cart/items", handler.AddCartItemHandler(d.carts))
			r.Put("/cart/items/{productID}", handler.UpdateCartItemHandler(d.carts))
			r.Delete("/cart/items/{productID}", handler.RemoveCartItemHandler(d.carts))

			r.Post("/stripe/create-checkout-session", handler.CreateCheckoutSessionHandler(d.checkouts))
			r.Get("/stripe/session/{id}", handler.CheckoutSessionHandler(d.orders))

			r.Get("/orders", handler.ListOrdersHandler(d.orders))
			r.Get("/orders/{id}", handler.GetOrderHandler(d.orders))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(auth, mw.AdminOnly)

			r.Post("/products", handler.CreateProductHandler(d.catalog))
			r.Patch("/products/rearrange", handler.RearrangeProductsHandler(d.catalog))
			r.Put("/products/{id}", handler.UpdateProductHandler(d.catalog))
			r.Delete("/products/{id}", handler.DeleteProductHandler(d.catalog))

			r.Patch("/orders/{id}/status", handler.UpdateOrderStatusHandler(d.orders))
			r.Get("/admin/orders", handler.AdminOrdersHandler(d.orders))
		})
	})

	return r
}

// useClientIP mounts RealIP only when forwarding headers come from a trusted
// proxy; otherwise rate limits key on the TCP peer address.
func useClientIP(r chi.Router, trustProxy bool) {
	if trustProxy {
		r.Use(middleware.RealIP)
	}
}

func sweepLimiters(ctx context.Context, limiters ...*mw.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, l := range limiters {
				l.Cleanup()
			}
		}
	}
}
