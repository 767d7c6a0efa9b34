package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "GEBEYA"

const (
	AppEnvDev     = "dev"
	AppEnvStaging = "staging"
	AppEnvProd    = "prod"
)

const (
	EnvAppEnv    = "GEBEYA_APP_ENV"
	EnvPort      = "GEBEYA_APP_PORT"
	EnvLogLevel  = "GEBEYA_LOG_LEVEL"
	EnvDBDSN     = "GEBEYA_DB_DSN"
	EnvDBHost    = "GEBEYA_DB_HOST"
	EnvDBUser    = "GEBEYA_DB_USER"
	EnvDBName    = "GEBEYA_DB_NAME"
	EnvRedisURL  = "GEBEYA_REDIS_URL"
	EnvJWTSecret = "GEBEYA_JWT_SECRET"
	EnvJWTIssuer = "GEBEYA_JWT_ISSUER"

	EnvOrdersPendingTTL      = "GEBEYA_ORDERS_PENDING_TTL"
	EnvPayoutVerificationTTL = "GEBEYA_PAYOUT_VERIFICATION_CODE_TTL"
	EnvCORSAllowedOrigins    = "GEBEYA_CORS_ALLOWED_ORIGINS"
	EnvPubSubOrdersTopic     = "GEBEYA_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
