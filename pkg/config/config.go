package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Inventory    InventoryConfig
	POS          POSConfig
	Square       SquareConfig
	Checkout     CheckoutConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
	JWT          JWTConfig
	CORS         CORSConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PACKFINDERZ_APP_ENV" required:"true"`
	Port         string `envconfig:"PACKFINDERZ_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PACKFINDERZ_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PACKFINDERZ_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PACKFINDERZ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PACKFINDERZ_DB_DSN"`
	Driver string `envconfig:"PACKFINDERZ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PACKFINDERZ_DB_HOST"`
	LegacyPort     int    `envconfig:"PACKFINDERZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PACKFINDERZ_DB_USER"`
	LegacyPassword string `envconfig:"PACKFINDERZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"PACKFINDERZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"PACKFINDERZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PACKFINDERZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PACKFINDERZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PACKFINDERZ_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PACKFINDERZ_REDIS_ADDR"`
	Password     string        `envconfig:"PACKFINDERZ_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKFINDERZ_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKFINDERZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKFINDERZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKFINDERZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKFINDERZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKFINDERZ_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PACKFINDERZ_AUTO_MIGRATE" default:"false"`
}

// InventoryConfig tunes the optimistic-lock retry loop used by the stock ledger.
type InventoryConfig struct {
	ConflictRetries       int           `envconfig:"PACKFINDERZ_INVENTORY_CONFLICT_RETRIES" default:"3"`
	ConflictBackoff       time.Duration `envconfig:"PACKFINDERZ_INVENTORY_CONFLICT_BACKOFF" default:"10ms"`
	MovementRetentionDays int           `envconfig:"PACKFINDERZ_INVENTORY_MOVEMENT_RETENTION_DAYS" default:"90"`
}

// POSConfig carries per-provider credentials and the network policy for POS calls.
type POSConfig struct {
	RESTBaseURL    string        `envconfig:"PACKFINDERZ_POS_REST_BASE_URL"`
	RESTToken      string        `envconfig:"PACKFINDERZ_POS_REST_TOKEN"`
	RequestTimeout time.Duration `envconfig:"PACKFINDERZ_POS_REQUEST_TIMEOUT" default:"10s"`
	MaxRetries     uint64        `envconfig:"PACKFINDERZ_POS_MAX_RETRIES" default:"3"`
	RetryBackoff   time.Duration `envconfig:"PACKFINDERZ_POS_RETRY_BACKOFF" default:"200ms"`
	SyncInterval   time.Duration `envconfig:"PACKFINDERZ_POS_SYNC_INTERVAL" default:"15m"`
	SyncTimeout    time.Duration `envconfig:"PACKFINDERZ_POS_SYNC_TIMEOUT" default:"10m"`
	Concurrency    int           `envconfig:"PACKFINDERZ_POS_SYNC_CONCURRENCY" default:"4"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"PACKFINDERZ_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"PACKFINDERZ_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// CheckoutConfig holds the customer-facing location selection policy.
type CheckoutConfig struct {
	LocationSelectionEnabled  bool          `envconfig:"PACKFINDERZ_CHECKOUT_LOCATION_SELECTION_ENABLED" default:"true"`
	LocationSelectionRequired bool          `envconfig:"PACKFINDERZ_CHECKOUT_LOCATION_SELECTION_REQUIRED" default:"false"`
	ShowStockToCustomer       bool          `envconfig:"PACKFINDERZ_CHECKOUT_SHOW_STOCK" default:"true"`
	SessionTTL                time.Duration `envconfig:"PACKFINDERZ_CHECKOUT_SESSION_TTL" default:"72h"`
}

// RateLimitConfig throttles the mutating inventory endpoints per client IP.
type RateLimitConfig struct {
	Window       time.Duration `envconfig:"PACKFINDERZ_RATE_LIMIT_WINDOW" default:"1m"`
	ReserveLimit int           `envconfig:"PACKFINDERZ_RATE_LIMIT_RESERVE" default:"120"`
	SyncLimit    int           `envconfig:"PACKFINDERZ_RATE_LIMIT_POS_SYNC" default:"6"`
}

// JWTConfig signs and verifies operator tokens for the admin and POS routes.
type JWTConfig struct {
	Secret            string `envconfig:"PACKFINDERZ_JWT_SECRET"`
	Issuer            string `envconfig:"PACKFINDERZ_JWT_ISSUER" default:"packfinderz-inventory"`
	ExpirationMinutes int    `envconfig:"PACKFINDERZ_JWT_EXPIRATION_MINUTES" default:"60"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"PACKFINDERZ_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"PACKFINDERZ_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"PACKFINDERZ_GCP_CREDENTIALS_JSON"`
}

// PubSubConfig names the topic stock level events are published to.
// Publishing is disabled when the GCP project id is empty.
type PubSubConfig struct {
	StockEventsTopic string `envconfig:"PACKFINDERZ_PUBSUB_STOCK_EVENTS_TOPIC" default:"pf-stock-events"`
}

type CronConfig struct {
	LockTTL time.Duration `envconfig:"PACKFINDERZ_CRON_LOCK_TTL" default:"30m"`
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
