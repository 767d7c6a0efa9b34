package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/gebeya-market/gebeya-backend/internal/cron"
	"github.com/gebeya-market/gebeya-backend/internal/listings"
	"github.com/gebeya-market/gebeya-backend/internal/notifications"
	"github.com/gebeya-market/gebeya-backend/internal/orders"
	"github.com/gebeya-market/gebeya-backend/internal/payments"
	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/db"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/metrics"
	"github.com/gebeya-market/gebeya-backend/pkg/migrate"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
	"github.com/gebeya-market/gebeya-backend/pkg/redis"
)

const (
	serviceKind   = "cron-worker"
	lockKeyFormat = "cron-worker:%s"
)

func main() {
	boot := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "cron worker exited", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    cfg.Service.Instance(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	jobs, err := buildJobs(cfg, logg, dbClient)
	if err != nil {
		return fmt.Errorf("build jobs: %w", err)
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	gdb := dbClient.DB()
	outboxRepo := outbox.NewRepository(gdb)
	publisher := outbox.NewService(outboxRepo, logg)

	recorder, err := payments.NewRecorder(payments.NewRepository(gdb), publisher)
	if err != nil {
		return nil, err
	}
	orderSvc, err := orders.NewService(orders.NewRepository(gdb), dbClient, publisher, recorder, listings.NewStock(listings.NewRepository(gdb)))
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewPendingOrderExpiryJob(cron.PendingOrderExpiryJobParams{
		Logger:  logg,
		Orders:  orderSvc,
		TTL:     cfg.Orders.PendingTTL,
		BatchSz: cfg.Orders.ExpiryBatch,
	})
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}
	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(gdb),
		Retention:  cfg.Notifications.Retention,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{expiry, outboxRetention, notificationCleanup}, nil
}
