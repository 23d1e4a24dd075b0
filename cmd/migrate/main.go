package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// gooseCommands pass straight through to goose against the embedded migrations.
var gooseCommands = map[string]bool{"up": true, "down": true, "redo": true, "reset": true, "status": true}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|redo|reset|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory for create and validate")
	flag.StringVar(&opts.name, "name", "", "migration name for create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version; empty prints the current one")
	flag.Parse()

	// create and validate touch only the source tree.
	switch opts.cmd {
	case "create":
		exitOn(createMigration(opts))
		return
	case "validate":
		exitOn(validate(opts.dir))
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exitOn(fmt.Errorf("loading config: %w", err))
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"driver": cfg.DB.Driver,
	})

	if err := runDB(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
}

func createMigration(opts options) error {
	if opts.name == "" {
		return errors.New("missing -name for create")
	}
	path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
	if err != nil {
		return err
	}
	fmt.Println("created migration:", path)
	return nil
}

func validate(dir string) error {
	if err := migrate.ValidateDir(dir); err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	if err := migrate.ValidateEmbedded(); err != nil {
		return fmt.Errorf("embedded: %w", err)
	}
	return nil
}

func runDB(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) (err error) {
	if !gooseCommands[opts.cmd] && opts.cmd != "version" {
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer func() { err = multierr.Append(err, client.Close()) }()

	sqlDB, err := client.SQL()
	if err != nil {
		return err
	}
	dialect := client.Dialect()
	logg.Info(logg.WithField(ctx, "dialect", dialect), "migrate.ready")

	switch {
	case gooseCommands[opts.cmd]:
		return migrate.Run(ctx, sqlDB, dialect, opts.cmd)
	case opts.version != "":
		return migrate.MigrateToVersion(ctx, sqlDB, dialect, opts.version)
	}
	current, err := migrate.Version(sqlDB, dialect)
	if err != nil {
		return err
	}
	fmt.Println("current version:", current)
	return nil
}

func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "migrate:", err)
	os.Exit(1)
}
