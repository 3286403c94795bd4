package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopfloor-backend/pkg/config"
	"github.com/angelmondragon/shopfloor-backend/pkg/db"
	"github.com/angelmondragon/shopfloor-backend/pkg/db/models"
	"github.com/angelmondragon/shopfloor-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date when the app is running in dev mode
// and the feature flag is enabled. The goose migrations target postgres, so the
// sqlite local mode builds its schema from the models instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.DB.Driver == config.DriverSQLite {
		ctx = logg.WithField(ctx, "driver", cfg.DB.Driver)
		logg.Info(ctx, "building sqlite schema from models (dev auto-run)")
		return SyncModels(client)
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": "embedded"})
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	migrator, err := NewMigrator(sqlDB, "")
	if err != nil {
		return err
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		return err
	}

	logg.Info(logg.WithField(ctx, "applied", len(applied)), "Goose migrations completed")
	return nil
}

// SyncModels creates or updates tables from the GORM models plus the partial
// indexes the models cannot describe.
func SyncModels(client *db.Client) error {
	conn := client.DB()
	if err := conn.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	for _, stmt := range models.PartialIndexes() {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create partial index: %w", err)
		}
	}
	return nil
}
