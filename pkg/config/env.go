package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

const (
	EnvAppEnv           = "STOREFRONT_APP_ENV"
	EnvLogLevel         = "STOREFRONT_LOG_LEVEL"
	EnvGatewayURL       = "STOREFRONT_GATEWAY_URL"
	EnvGatewayTimeout   = "STOREFRONT_GATEWAY_TIMEOUT"
	EnvCartMaxQuantity  = "STOREFRONT_CART_MAX_QUANTITY"
	EnvCartClearOnOrder = "STOREFRONT_CART_CLEAR_ON_ORDER"
	EnvSessionStore     = "STOREFRONT_SESSION_STORE"
	EnvSessionClientID  = "STOREFRONT_SESSION_CLIENT_ID"
	EnvRedisURL         = "STOREFRONT_REDIS_URL"
	EnvDBDriver         = "STOREFRONT_DB_DRIVER"
	EnvDBDSN            = "STOREFRONT_DB_DSN"
	EnvJWTSecret        = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer        = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins       = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvDevServerPort    = "STOREFRONT_DEVSERVER_PORT"
	EnvCORSOrigins      = "STOREFRONT_CORS_ORIGINS"
	EnvIdempotencyTTL   = "STOREFRONT_IDEMPOTENCY_TTL"
	EnvMetricsEnabled   = "STOREFRONT_METRICS_ENABLED"
	EnvLoginEmail       = "STOREFRONT_LOGIN_EMAIL"
	EnvLoginPassword    = "STOREFRONT_LOGIN_PASSWORD"
	EnvAutoMigrate      = "STOREFRONT_AUTO_MIGRATE"
	EnvRedisSessionTTL  = "STOREFRONT_REDIS_SESSION_TTL"
)
