package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// MaybeRunDev brings the devserver schema up to date when DevServer.AutoMigrate
// is set, checking the embedded files first so a malformed migration never runs.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.DevServer.AutoMigrate {
		logg.Debug(ctx, "migrate.autorun.skipped")
		return nil
	}
	if err := ValidateEmbedded(); err != nil {
		return fmt.Errorf("embedded migrations: %w", err)
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	dialect := client.Dialect()

	before, err := Version(sqlDB, dialect)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if err := Run(ctx, sqlDB, dialect, "up"); err != nil {
		return err
	}
	after, err := Version(sqlDB, dialect)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"dialect":      dialect,
		"from_version": before,
		"to_version":   after,
	})
	logg.Info(ctx, "migrate.autorun.done")
	return nil
}
