package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Orders        OrdersConfig
	Payouts       PayoutsConfig
	Notifications NotificationsConfig
	Cron          CronConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GEBEYA_APP_ENV" required:"true"`
	Port         string `envconfig:"GEBEYA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GEBEYA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GEBEYA_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"GEBEYA_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind       string `envconfig:"GEBEYA_SERVICE_KIND" default:"api"`
	InstanceID string `envconfig:"GEBEYA_INSTANCE_ID"`
}

// Instance names this process in logs and lock tokens: GEBEYA_INSTANCE_ID,
// else the hostname (the pod name on Cloud Run and k8s), else "<kind>-0".
func (s ServiceConfig) Instance() string {
	if id := strings.TrimSpace(s.InstanceID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return s.Kind + "-0"
}

type DBConfig struct {
	DSN    string `envconfig:"GEBEYA_DB_DSN"`
	Driver string `envconfig:"GEBEYA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GEBEYA_DB_HOST"`
	LegacyPort     int    `envconfig:"GEBEYA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GEBEYA_DB_USER"`
	LegacyPassword string `envconfig:"GEBEYA_DB_PASSWORD"`
	LegacyName     string `envconfig:"GEBEYA_DB_NAME"`
	LegacySSLMode  string `envconfig:"GEBEYA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GEBEYA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GEBEYA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GEBEYA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GEBEYA_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"GEBEYA_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
	ConnectAttempts    uint64        `envconfig:"GEBEYA_DB_CONNECT_ATTEMPTS" default:"5"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GEBEYA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GEBEYA_REDIS_ADDR"`
	Password     string        `envconfig:"GEBEYA_REDIS_PASSWORD"`
	DB           int           `envconfig:"GEBEYA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GEBEYA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GEBEYA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GEBEYA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GEBEYA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GEBEYA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the bearer tokens minted by the identity bridge. The
// service only verifies them; ExpirationMinutes is used by dev tooling that
// mints local tokens.
type JWTConfig struct {
	Secret            string `envconfig:"GEBEYA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GEBEYA_JWT_ISSUER" default:"gebeya-identity"`
	ExpirationMinutes int    `envconfig:"GEBEYA_JWT_EXPIRATION_MINUTES" default:"60"`
}

func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GEBEYA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GEBEYA_AUTO_MIGRATE" default:"false"`
	// NotificationStream toggles the websocket unread-count channel.
	NotificationStream bool `envconfig:"GEBEYA_FEATURE_NOTIFICATION_STREAM" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"GEBEYA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	ClaimTTL             time.Duration `envconfig:"GEBEYA_EVENTING_CLAIM_TTL" default:"5m"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"GEBEYA_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"GEBEYA_GCP_CREDENTIALS_JSON"`
	CredentialsFile string `envconfig:"GEBEYA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"GEBEYA_PUBSUB_ORDERS_TOPIC" default:"gebeya-order-events"`
	PayoutsTopic             string `envconfig:"GEBEYA_PUBSUB_PAYOUTS_TOPIC" default:"gebeya-payout-events"`
	NotificationSubscription string `envconfig:"GEBEYA_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"gebeya-order-events-notifications"`
	PayoutsSubscription      string `envconfig:"GEBEYA_PUBSUB_PAYOUTS_SUBSCRIPTION" default:"gebeya-payout-events-notifications"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"GEBEYA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"GEBEYA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"GEBEYA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"GEBEYA_OUTBOX_RETENTION" default:"168h"`
}

func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

type OrdersConfig struct {
	PendingTTL   time.Duration `envconfig:"GEBEYA_ORDERS_PENDING_TTL" default:"72h"`
	Currency     string        `envconfig:"GEBEYA_ORDERS_CURRENCY" default:"ETB"`
	MaxLineItems int           `envconfig:"GEBEYA_ORDERS_MAX_LINE_ITEMS" default:"50"`
	ExpiryBatch  int           `envconfig:"GEBEYA_ORDERS_EXPIRY_BATCH" default:"100"`
}

type PayoutsConfig struct {
	VerificationCodeTTL    time.Duration `envconfig:"GEBEYA_PAYOUT_VERIFICATION_CODE_TTL" default:"10m"`
	VerificationCodeDigits int           `envconfig:"GEBEYA_PAYOUT_VERIFICATION_CODE_DIGITS" default:"6"`
	VerificationMaxTries   int           `envconfig:"GEBEYA_PAYOUT_VERIFICATION_MAX_TRIES" default:"5"`
}

type NotificationsConfig struct {
	StreamPingInterval time.Duration `envconfig:"GEBEYA_NOTIFICATIONS_STREAM_PING" default:"30s"`
	Retention          time.Duration `envconfig:"GEBEYA_NOTIFICATIONS_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"GEBEYA_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"GEBEYA_CRON_LOCK_TTL" default:"5m"`
}

type RateLimitConfig struct {
	PublicRPS   float64 `envconfig:"GEBEYA_RATE_LIMIT_PUBLIC_RPS" default:"10"`
	PublicBurst int     `envconfig:"GEBEYA_RATE_LIMIT_PUBLIC_BURST" default:"20"`

	// Payout verification endpoints share one redis-backed window.
	VerificationWindow    time.Duration `envconfig:"GEBEYA_RATE_LIMIT_VERIFICATION_WINDOW" default:"15m"`
	VerificationIPLimit   int           `envconfig:"GEBEYA_RATE_LIMIT_VERIFICATION_IP_LIMIT" default:"30"`
	VerificationUserLimit int           `envconfig:"GEBEYA_RATE_LIMIT_VERIFICATION_USER_LIMIT" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `envconfig:"GEBEYA_CORS_ALLOWED_ORIGINS" default:"*"`
	AllowCredentials bool          `envconfig:"GEBEYA_CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"GEBEYA_CORS_MAX_AGE" default:"5m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
