package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/gebeya-market/gebeya-backend/internal/notifications"
	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/db"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox/idempotency"
	"github.com/gebeya-market/gebeya-backend/pkg/pubsub"
	"github.com/gebeya-market/gebeya-backend/pkg/redis"
)

const (
	serviceKind        = "worker"
	orderConsumerName  = "order-notifications"
	payoutConsumerName = "payout-notifications"
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
		logg.Error(context.Background(), "worker exited", err)
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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg,
		pubsub.WithSubscriptions(cfg.PubSub.NotificationSubscription, cfg.PubSub.PayoutsSubscription),
	)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	guard, err := idempotency.NewGuard(redisClient, cfg.Eventing.ClaimTTL, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency guard: %w", err)
	}

	repo := notifications.NewRepository(dbClient.DB())
	counter := notifications.NewCounter(redisClient, logg)
	consumers := map[string]consumerRunner{}
	for name, sub := range map[string]*gcppubsub.Subscriber{
		orderConsumerName:  pubsubClient.NotificationSubscription(),
		payoutConsumerName: pubsubClient.PayoutsSubscription(),
	} {
		consumer, err := notifications.NewConsumer(name, repo, dbClient, sub, guard, counter, logg)
		if err != nil {
			return fmt.Errorf("%s consumer: %w", name, err)
		}
		consumers[name] = consumer
	}

	svc, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: []dependency{
			{name: "database", ping: dbClient.Ping},
			{name: "redis", ping: redisClient.Ping},
			{name: "pubsub", ping: pubsubClient.Ping},
		},
		Consumers: consumers,
	})
	if err != nil {
		return fmt.Errorf("worker service: %w", err)
	}

	logg.Info(ctx, "starting worker")
	if err := svc.Run(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "worker shutting down gracefully")
	return nil
}
