package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "POS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "POS_APP_ENV"
	EnvPort           = "POS_APP_PORT"
	EnvDBDSN          = "POS_DB_DSN"
	EnvDBHost         = "POS_DB_HOST"
	EnvDBUser         = "POS_DB_USER"
	EnvDBName         = "POS_DB_NAME"
	EnvRedisURL       = "POS_REDIS_URL"
	EnvUseSQLite      = "POS_USE_SQLITE"
	EnvSQLitePath     = "POS_DB_SQLITE_PATH"
	EnvSinkTimeout    = "POS_CHECKOUT_SINK_TIMEOUT"
	EnvPaymentMethods = "POS_CHECKOUT_PAYMENT_METHODS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Checkout     CheckoutConfig
	Session      SessionConfig
	Jobs         JobsConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		if cfg.DB.SQLitePath == "" {
			return nil, fmt.Errorf("%s requires %s", EnvUseSQLite, EnvSQLitePath)
		}
	} else if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" default:"8080"`
	StoreName    string `envconfig:"POS_STORE_NAME" default:"agrivet"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists the till front-ends allowed to call the API.
	CORSOrigins []string `envconfig:"POS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"POS_DB_DSN"`
	SQLitePath string `envconfig:"POS_DB_SQLITE_PATH" default:"pos.db"`

	LegacyHost     string `envconfig:"POS_DB_HOST"`
	LegacyPort     int    `envconfig:"POS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POS_DB_USER"`
	LegacyPassword string `envconfig:"POS_DB_PASSWORD"`
	LegacyName     string `envconfig:"POS_DB_NAME"`
	LegacySSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether any Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type CheckoutConfig struct {
	SinkTimeout         time.Duration `envconfig:"POS_CHECKOUT_SINK_TIMEOUT" default:"10s"`
	PaymentMethods      []string      `envconfig:"POS_CHECKOUT_PAYMENT_METHODS" default:"cash,gcash,card,credit"`
	BreakerMaxFailures  uint32        `envconfig:"POS_CHECKOUT_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenInterval time.Duration `envconfig:"POS_CHECKOUT_BREAKER_OPEN_INTERVAL" default:"30s"`
	IdempotencyTTL      time.Duration `envconfig:"POS_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}

// AllowsPaymentMethod reports whether method is in the configured allow list.
func (c CheckoutConfig) AllowsPaymentMethod(method string) bool {
	method = strings.ToLower(strings.TrimSpace(method))
	for _, allowed := range c.PaymentMethods {
		if strings.ToLower(strings.TrimSpace(allowed)) == method {
			return true
		}
	}
	return false
}

func (c CheckoutConfig) validate() error {
	if c.SinkTimeout <= 0 {
		return fmt.Errorf("POS_CHECKOUT_SINK_TIMEOUT must be positive")
	}
	if len(c.PaymentMethods) == 0 {
		return fmt.Errorf("POS_CHECKOUT_PAYMENT_METHODS must list at least one method")
	}
	return nil
}

type SessionConfig struct {
	SnapshotTTL time.Duration `envconfig:"POS_SESSION_SNAPSHOT_TTL" default:"12h"`
}

type JobsConfig struct {
	Interval time.Duration `envconfig:"POS_JOBS_INTERVAL" default:"1h"`
	Timezone string        `envconfig:"POS_STORE_TIMEZONE" default:"UTC"`
}

// Location resolves the store's business-day timezone.
func (j JobsConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(j.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(j.Timezone)
	if err != nil {
		return nil, fmt.Errorf("POS_STORE_TIMEZONE: %w", err)
	}
	return loc, nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"POS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"POS_AUTO_MIGRATE" default:"false"`
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
