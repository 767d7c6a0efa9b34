package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gebeya-market/gebeya-backend/api/controllers"
	"github.com/gebeya-market/gebeya-backend/api/routes"
	"github.com/gebeya-market/gebeya-backend/internal/checkout"
	"github.com/gebeya-market/gebeya-backend/internal/listings"
	"github.com/gebeya-market/gebeya-backend/internal/notifications"
	"github.com/gebeya-market/gebeya-backend/internal/orders"
	"github.com/gebeya-market/gebeya-backend/internal/payments"
	"github.com/gebeya-market/gebeya-backend/internal/payoutmethods"
	"github.com/gebeya-market/gebeya-backend/internal/reviews"
	"github.com/gebeya-market/gebeya-backend/internal/settlements"
	"github.com/gebeya-market/gebeya-backend/internal/users"
	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/db"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/metrics"
	"github.com/gebeya-market/gebeya-backend/pkg/migrate"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(registry)

	deps, hub, err := buildDependencies(cfg, logg, dbClient, redisClient, orderMetrics)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}
	deps.Gatherer = registry
	deps.Metrics = metrics.NewHTTPMetrics(registry)

	if cfg.FeatureFlags.NotificationStream {
		// Unread counts published by any replica or by the worker reach the
		// sockets held by this process.
		relay, err := redisClient.PSubscribe(ctx, redisClient.NotificationPattern())
		if err != nil {
			logg.Error(ctx, "failed to subscribe to notification channels", err)
			os.Exit(1)
		}
		defer relay.Close()
		go hub.Relay(ctx, relay.Channel())
	} else {
		deps.Stream = nil
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": cfg.Service.Instance(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, orderMetrics *metrics.OrderMetrics) (routes.Dependencies, *notifications.Hub, error) {
	gdb := dbClient.DB()
	publisher := outbox.NewService(outbox.NewRepository(gdb), logg)

	userRepo := users.NewRepository(gdb)
	syncer, err := users.NewSyncer(userRepo, redisClient, 0)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	listingRepo := listings.NewRepository(gdb)
	listingSvc, err := listings.NewService(listingRepo)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}
	stock := listings.NewStock(listingRepo)

	paymentRepo := payments.NewRepository(gdb)
	recorder, err := payments.NewRecorder(paymentRepo, publisher)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	orderRepo := orders.NewRepository(gdb)
	orderSvc, err := orders.NewService(orderRepo, dbClient, publisher, recorder, stock,
		orders.WithNameResolver(userRepo),
		orders.WithMetrics(orderMetrics),
	)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	checkoutSvc, err := checkout.NewService(dbClient, listingRepo, stock, orderRepo, recorder, publisher, orderMetrics)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	paymentSvc, err := payments.NewService(paymentRepo, orderRepo)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	methodRepo := payoutmethods.NewRepository(gdb)
	methodSvc, err := payoutmethods.NewService(methodRepo, dbClient, publisher, redisClient, cfg.Payouts, logg)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	settlementSvc, err := settlements.NewService(settlements.NewRepository(gdb), dbClient, orderRepo, methodRepo, paymentRepo, recorder, publisher)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	reviewSvc, err := reviews.NewService(reviews.NewRepository(gdb), dbClient, publisher, userRepo)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}

	counter := notifications.NewCounter(redisClient, logg)
	notificationSvc, err := notifications.NewService(notifications.NewRepository(gdb), counter)
	if err != nil {
		return routes.Dependencies{}, nil, err
	}
	hub := notifications.NewHub(cfg.Notifications.StreamPingInterval, notifications.AllowOrigins(cfg.CORS.AllowedOrigins), logg)

	return routes.Dependencies{
		Pingers: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Redis:         redisClient,
		Syncer:        syncer,
		Stream:        hub,
		Listings:      listingSvc,
		Checkout:      checkoutSvc,
		Orders:        orderSvc,
		Payments:      paymentSvc,
		PayoutMethods: methodSvc,
		Settlements:   settlementSvc,
		Reviews:       reviewSvc,
		Notifications: notificationSvc,
	}, hub, nil
}
