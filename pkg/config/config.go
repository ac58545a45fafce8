package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is the envconfig prefix; individual fields carry explicit
	// SPICYPICKLE_-prefixed names so the prefix itself stays empty.
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "SPICYPICKLE_DB_DSN"
	EnvDBHost = "SPICYPICKLE_DB_HOST"
	EnvDBUser = "SPICYPICKLE_DB_USER"
	EnvDBName = "SPICYPICKLE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Shopify      ShopifyConfig
	Sync         SyncConfig
	Picklist     PicklistConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"SPICYPICKLE_APP_ENV" required:"true"`
	Port         string `envconfig:"SPICYPICKLE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SPICYPICKLE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SPICYPICKLE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SPICYPICKLE_DB_DSN"`
	Driver string `envconfig:"SPICYPICKLE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SPICYPICKLE_DB_HOST"`
	LegacyPort     int    `envconfig:"SPICYPICKLE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SPICYPICKLE_DB_USER"`
	LegacyPassword string `envconfig:"SPICYPICKLE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SPICYPICKLE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SPICYPICKLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SPICYPICKLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SPICYPICKLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SPICYPICKLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SPICYPICKLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SPICYPICKLE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SPICYPICKLE_REDIS_ADDR"`
	Password     string        `envconfig:"SPICYPICKLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SPICYPICKLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SPICYPICKLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SPICYPICKLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SPICYPICKLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SPICYPICKLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SPICYPICKLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SPICYPICKLE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SPICYPICKLE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SPICYPICKLE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	StockEventsTopic        string `envconfig:"SPICYPICKLE_PUBSUB_STOCK_TOPIC" default:"sp-stock-events"`
	StockEventsSubscription string `envconfig:"SPICYPICKLE_PUBSUB_STOCK_SUBSCRIPTION"`
}

type ShopifyConfig struct {
	ShopDomain    string        `envconfig:"SPICYPICKLE_SHOPIFY_SHOP_DOMAIN" required:"true"`
	AccessToken   string        `envconfig:"SPICYPICKLE_SHOPIFY_ACCESS_TOKEN" required:"true"`
	APIVersion    string        `envconfig:"SPICYPICKLE_SHOPIFY_API_VERSION" default:"2024-01"`
	WebhookSecret string        `envconfig:"SPICYPICKLE_SHOPIFY_WEBHOOK_SECRET" required:"true"`
	Timeout       time.Duration `envconfig:"SPICYPICKLE_SHOPIFY_TIMEOUT" default:"15s"`
}

type SyncConfig struct {
	LockTTL      time.Duration `envconfig:"SPICYPICKLE_SYNC_LOCK_TTL" default:"60s"`
	DedupTTL     time.Duration `envconfig:"SPICYPICKLE_SYNC_DEDUP_TTL" default:"24h"`
	AdjustReason string        `envconfig:"SPICYPICKLE_SYNC_ADJUST_REASON" default:"bundle sync"`
}

type PicklistConfig struct {
	OrderPageSize int `envconfig:"SPICYPICKLE_PICKLIST_ORDER_PAGE_SIZE" default:"250"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SPICYPICKLE_AUTO_MIGRATE" default:"false"`
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
