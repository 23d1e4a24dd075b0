package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/internal/gateway"
	"github.com/angelmondragon/storefront/internal/guard"
	"github.com/angelmondragon/storefront/internal/session"
	"github.com/angelmondragon/storefront/internal/store"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "catalog", "command: catalog|cart|orders|checkout|logout")
	address := flag.Int("address", 0, "address book index used by -cmd=checkout")
	payment := flag.String("payment", "cash", "payment mode used by -cmd=checkout: cash|card")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	if err := run(ctx, cfg, logg, command{name: *cmd, address: *address, payment: *payment}); err != nil {
		logg.Error(ctx, "storefront command failed", err)
		os.Exit(1)
	}
}

type command struct {
	name    string
	address int
	payment string
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, cmd command) (err error) {
	var sessionClient redis.SessionStore
	if cfg.Session.UsesRedis() {
		redisClient, redisErr := redis.New(ctx, cfg.Redis, logg)
		if redisErr != nil {
			return redisErr
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		sessionClient = redisClient
	}
	tokens, err := session.FromConfig(cfg, sessionClient)
	if err != nil {
		return err
	}

	client, err := gateway.New(cfg.Gateway, nil, logg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	var observer async.Observer
	if cfg.Metrics.Enabled {
		observer = metrics.NewOperationMetrics(registry)
	}

	s, err := store.New(store.Params{
		Gateway:     client,
		Tokens:      tokens,
		MaxQuantity: cfg.Cart.MaxQuantity,
		Logger:      logg,
		Observer:    observer,
	})
	if err != nil {
		return err
	}
	defer s.Close()
	client.UseToken(s.Auth().Token)

	if err := signIn(ctx, cfg, logg, s); err != nil {
		return err
	}

	g := guard.New(nil, logg)
	g.Observe(s)
	defer g.Stop()

	err = dispatch(ctx, cfg, logg, s, g, cmd)
	if cfg.Metrics.Enabled {
		logOperations(ctx, logg, registry)
	}
	return err
}

// signIn restores the persisted session, falling back to the configured credentials.
func signIn(ctx context.Context, cfg *config.Config, logg *logger.Logger, s *store.Store) error {
	sess, err := s.Bootstrap(ctx)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "session.restore_failed")
	}
	if sess != nil {
		logg.Info(logg.WithUserID(ctx, sess.ID), "session.restored")
		return nil
	}
	if cfg.Session.Email == "" || cfg.Session.Password == "" {
		return nil
	}
	login, err := s.Login(ctx, credentials(cfg))
	if err != nil {
		return fmt.Errorf("signing in as %s: %w", cfg.Session.Email, err)
	}
	logg.Info(logg.WithUserID(ctx, login.ID), "session.signed_in")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
