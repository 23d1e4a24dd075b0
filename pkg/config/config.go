package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Gateway   GatewayConfig
	Cart      CartConfig
	Session   SessionConfig
	Redis     RedisConfig
	DB        DBConfig
	JWT       JWTConfig
	Password  PasswordConfig
	DevServer DevServerConfig
	Metrics   MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Session.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// GatewayConfig points the client at the remote storefront API.
type GatewayConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_GATEWAY_URL" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"STOREFRONT_GATEWAY_TIMEOUT" default:"10s"`
}

func (g GatewayConfig) validate() error {
	u, err := url.Parse(g.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvGatewayURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url, got %q", EnvGatewayURL, g.BaseURL)
	}
	return nil
}

// CartConfig bounds cart mutations.
type CartConfig struct {
	MaxQuantity  int  `envconfig:"STOREFRONT_CART_MAX_QUANTITY" default:"5"`
	ClearOnOrder bool `envconfig:"STOREFRONT_CART_CLEAR_ON_ORDER" default:"true"`
}

func (c CartConfig) validate() error {
	if c.MaxQuantity < 1 {
		return fmt.Errorf("%s must be at least 1", EnvCartMaxQuantity)
	}
	return nil
}

// SessionConfig selects where the session token survives restarts.
type SessionConfig struct {
	Store    string `envconfig:"STOREFRONT_SESSION_STORE" default:"memory"`
	ClientID string `envconfig:"STOREFRONT_SESSION_CLIENT_ID" default:"default"`
	Email    string `envconfig:"STOREFRONT_LOGIN_EMAIL"`
	Password string `envconfig:"STOREFRONT_LOGIN_PASSWORD"`
}

func (s SessionConfig) UsesRedis() bool {
	return strings.EqualFold(s.Store, SessionStoreRedis)
}

func (s SessionConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Store)) {
	case SessionStoreMemory, SessionStoreRedis:
		return nil
	}
	return fmt.Errorf("%s must be %q or %q, got %q", EnvSessionStore, SessionStoreMemory, SessionStoreRedis, s.Store)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	SessionTTL   time.Duration `envconfig:"STOREFRONT_REDIS_SESSION_TTL" default:"720h"`
}

// Configured reports whether any redis endpoint was provided.
func (r RedisConfig) Configured() bool {
	return r.URL != "" || r.Address != ""
}

type DBConfig struct {
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"STOREFRONT_DB_DSN" default:"file:storefront.db?cache=shared"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"200ms"`
}

func (db DBConfig) IsPostgres() bool {
	return strings.EqualFold(db.Driver, DBDriverPostgres)
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" default:"dev-secret"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// TTL returns the session token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREFRONT_ARGON_KEY_LEN" default:"32"`
}

// DevServerConfig drives the reference gateway server.
type DevServerConfig struct {
	Port           string        `envconfig:"STOREFRONT_DEVSERVER_PORT" default:"8080"`
	AutoMigrate    bool          `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"true"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_IDEMPOTENCY_TTL" default:"24h"`
	AllowedOrigins []string      `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"STOREFRONT_METRICS_ENABLED" default:"true"`
}
