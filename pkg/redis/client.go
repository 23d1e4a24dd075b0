// Package redis holds the storefront's redis access: the devserver's
// idempotency records and the CLI's persisted session token.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
)

var errNotInitialized = errors.New("redis client not initialized")

// cmdable is the subset of go-redis commands the client issues.
type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client wraps a go-redis connection with storefront key conventions.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// IdempotencyStore is what the idempotency middleware persists records through.
// Get reports a miss as redis.Nil.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
}

var _ IdempotencyStore = (*Client)(nil)

// New dials redis from cfg and pings it before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	logg.Debug(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB}), "redis.connected")
	return &Client{store: raw, raw: raw}, nil
}

// optionsFromConfig prefers URL over Address. Pool and timeout settings from cfg
// fill whatever the URL leaves unset.
func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if !cfg.Configured() {
		return nil, errors.New("redis url or address is required")
	}
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	}
	fill(&opts.PoolSize, cfg.PoolSize)
	fill(&opts.MinIdleConns, cfg.MinIdleConns)
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fill[T comparable](dst *T, fallback T) {
	var zero T
	if *dst == zero {
		*dst = fallback
	}
}

func (c *Client) conn() (cmdable, error) {
	if c == nil || c.store == nil {
		return nil, errNotInitialized
	}
	return c.store, nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	store, err := c.conn()
	if err != nil {
		return err
	}
	return store.Set(ctx, key, value, ttl).Err()
}

// Get returns the string at key, or redis.Nil when absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	store, err := c.conn()
	if err != nil {
		return "", err
	}
	return store.Get(ctx, key).Result()
}

// SetNX writes value only when key is absent and reports whether it did.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	store, err := c.conn()
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	store, err := c.conn()
	if err != nil {
		return false, err
	}
	return store.Expire(ctx, key, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	store, err := c.conn()
	if err != nil {
		return err
	}
	return store.Del(ctx, keys...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	store, err := c.conn()
	if err != nil {
		return err
	}
	return store.Ping(ctx).Err()
}

// Close releases the pool. A client built without a connection closes cleanly.
func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}
