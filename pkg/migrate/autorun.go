package migrate

import (
	"context"
	"fmt"

	"github.com/gebeya-market/gebeya-backend/pkg/config"
	"github.com/gebeya-market/gebeya-backend/pkg/db"
	"github.com/gebeya-market/gebeya-backend/pkg/db/models"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

// Models lists every persisted type. SQLite deployments build their schema
// from it because the goose migrations use postgres-only syntax.
func Models() []any {
	return []any{
		&models.User{},
		&models.Listing{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.OrderStatusEvent{},
		&models.PayoutMethod{},
		&models.Settlement{},
		&models.PaymentEvent{},
		&models.Review{},
		&models.Notification{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// MaybeRunDev migrates the schema on boot when running in dev with the
// auto-migrate flag on.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if cfg.DB.Driver == "sqlite" {
		logg.Info(ctx, "auto-migrating sqlite schema")
		if err := client.DB().WithContext(ctx).AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto-migrating sqlite schema: %w", err)
		}
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	runner, err := NewRunner(sqlDB, Source(""), nil)
	if err != nil {
		return err
	}
	logg.Info(ctx, "applying embedded migrations")
	if err := runner.Up(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
