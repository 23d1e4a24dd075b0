package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Client owns the devserver's GORM connection.
type Client struct {
	conn *gorm.DB
}

// New opens cfg.Driver at cfg.DSN, sizes the pool and pings it. Slow and failed
// statements are reported through logg.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}
	client := &Client{conn: conn}

	sqlDB, err := client.SQL()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := client.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging %s database: %w", cfg.Driver, err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"driver": cfg.Driver, "dialect": client.Dialect()}), "db.connected")
	return client, nil
}

// Wrap adopts an already opened connection.
func Wrap(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch {
	case cfg.IsPostgres():
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	case cfg.Driver == config.DBDriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

// SQL returns the pooled database/sql handle goose runs against.
func (c *Client) SQL() (*sql.DB, error) {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	return sqlDB, nil
}

// Dialect names the goose dialect matching the connection.
func (c *Client) Dialect() string {
	if c.conn.Dialector.Name() == "postgres" {
		return "postgres"
	}
	return "sqlite3"
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.SQL()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.SQL()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction that commits when fn returns nil. An error or
// panic from fn rolls it back.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
