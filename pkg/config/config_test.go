package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "dev" {
		t.Fatalf("expected default App.Env dev, got %q", cfg.App.Env)
	}
	if cfg.Gateway.BaseURL != "http://localhost:8080" {
		t.Fatalf("unexpected gateway url %q", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.Timeout != 10*time.Second {
		t.Fatalf("expected default timeout 10s, got %v", cfg.Gateway.Timeout)
	}
	if cfg.Cart.MaxQuantity != 5 {
		t.Fatalf("expected default max quantity 5, got %d", cfg.Cart.MaxQuantity)
	}
	if !cfg.Cart.ClearOnOrder {
		t.Fatalf("expected cart clear on order by default")
	}
	if cfg.Session.UsesRedis() {
		t.Fatalf("expected memory session store by default")
	}
	if cfg.JWT.TTL() != 24*time.Hour {
		t.Fatalf("expected 24h token ttl, got %v", cfg.JWT.TTL())
	}
}

func TestLoad_Overrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvCartMaxQuantity, "9")
	t.Setenv(EnvSessionStore, "redis")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvCORSOrigins, "http://a.test,http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Cart.MaxQuantity != 9 {
		t.Fatalf("expected max quantity 9, got %d", cfg.Cart.MaxQuantity)
	}
	if !cfg.Session.UsesRedis() || !cfg.Redis.Configured() {
		t.Fatalf("expected redis session store to be configured")
	}
	if len(cfg.DevServer.AllowedOrigins) != 2 {
		t.Fatalf("expected two cors origins, got %v", cfg.DevServer.AllowedOrigins)
	}
}

func TestLoad_DefaultsGatewayURL(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvGatewayURL); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvGatewayURL, err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.Gateway.BaseURL != "http://localhost:8080" {
		t.Fatalf("expected default gateway url, got %q", cfg.Gateway.BaseURL)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		EnvGatewayURL:      "ftp://example.com",
		EnvCartMaxQuantity: "0",
		EnvSessionStore:    "disk",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			setMinimalEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to be rejected", key, value)
			}
		})
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvGatewayURL, "http://localhost:8080")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
	if prodConfig.IsDev() {
		t.Fatalf("expected IsDev false for %q", prodConfig.Env)
	}
}
