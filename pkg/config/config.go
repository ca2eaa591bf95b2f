package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/angelmondragon/ptm-finance-backend/pkg/money"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Upstream     UpstreamConfig
	Storage      StorageConfig
	Finance      FinanceConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
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
	if _, err := cfg.Finance.DuesAmount(); err != nil {
		return nil, err
	}
	if _, err := time.LoadLocation(cfg.App.Timezone); err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvTimezone, cfg.App.Timezone, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FINANCE_APP_ENV" required:"true"`
	Port         string `envconfig:"FINANCE_APP_PORT" default:"3300"`
	LogLevel     string `envconfig:"FINANCE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FINANCE_LOG_WARN_STACK" default:"false"`
	// PublicURL is the externally reachable base of this service. Stored
	// proof paths are rebased onto it.
	PublicURL string `envconfig:"FINANCE_APP_URL" default:"http://localhost:3300"`
	Timezone  string `envconfig:"FINANCE_TZ" default:"Asia/Jakarta"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the configured timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type DBConfig struct {
	DSN    string `envconfig:"FINANCE_DB_DSN"`
	Driver string `envconfig:"FINANCE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FINANCE_DB_HOST"`
	LegacyPort     int    `envconfig:"FINANCE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FINANCE_DB_USER"`
	LegacyPassword string `envconfig:"FINANCE_DB_PASSWORD"`
	LegacyName     string `envconfig:"FINANCE_DB_NAME" default:"ptm_bmup_finance"`
	LegacySSLMode  string `envconfig:"FINANCE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FINANCE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FINANCE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FINANCE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FINANCE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"FINANCE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FINANCE_REDIS_ADDR"`
	Password     string        `envconfig:"FINANCE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FINANCE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FINANCE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FINANCE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FINANCE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FINANCE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FINANCE_REDIS_WRITE_TIMEOUT" default:"5s"`
	// IdempotencyTTL bounds how long a replayable response is kept.
	IdempotencyTTL time.Duration `envconfig:"FINANCE_IDEMPOTENCY_TTL" default:"24h"`
}

type JWTConfig struct {
	Secret string `envconfig:"FINANCE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FINANCE_JWT_ISSUER"`
	// CookieName is the session cookie set by the identity service.
	CookieName string `envconfig:"FINANCE_JWT_COOKIE" default:"token"`
}

type UpstreamConfig struct {
	CoreURL    string        `envconfig:"FINANCE_API_URL_CORE" default:"http://localhost:3000/api"`
	SettingURL string        `envconfig:"FINANCE_API_URL_SETTING" default:"http://localhost:3200/api"`
	Timeout    time.Duration `envconfig:"FINANCE_UPSTREAM_TIMEOUT" default:"10s"`
	// BulkConcurrency caps parallel member lookups during an import.
	BulkConcurrency int `envconfig:"FINANCE_UPSTREAM_BULK_CONCURRENCY" default:"8"`
}

type StorageConfig struct {
	Root           string `envconfig:"FINANCE_STORAGE_ROOT" default:"storage"`
	ProofDir       string `envconfig:"FINANCE_STORAGE_PROOF_DIR" default:"proof_file"`
	ImportDir      string `envconfig:"FINANCE_STORAGE_IMPORT_DIR" default:"private/imports"`
	ProofMaxMB     int    `envconfig:"FINANCE_PROOF_MAX_MB" default:"5"`
	ImportMaxMB    int    `envconfig:"FINANCE_IMPORT_MAX_MB" default:"20"`
	ImageMaxWidth  int    `envconfig:"FINANCE_PROOF_IMAGE_MAX_WIDTH" default:"1920"`
	ImageMaxHeight int    `envconfig:"FINANCE_PROOF_IMAGE_MAX_HEIGHT" default:"1920"`
}

func (s StorageConfig) ProofMaxBytes() int64 {
	return int64(s.ProofMaxMB) << 20
}

func (s StorageConfig) ImportMaxBytes() int64 {
	return int64(s.ImportMaxMB) << 20
}

type FinanceConfig struct {
	DefaultDuesAmount string `envconfig:"FINANCE_DEFAULT_DUES_AMOUNT" default:"10000"`
}

// DuesAmount parses the configured default dues amount. It must fit the
// ledger's amount columns.
func (f FinanceConfig) DuesAmount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(f.DefaultDuesAmount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", EnvDefaultDuesAmount, err)
	}
	if err := money.Check(amount); err != nil {
		return decimal.Zero, fmt.Errorf("%s %w", EnvDefaultDuesAmount, err)
	}
	return amount, nil
}

type RateLimitConfig struct {
	Window      time.Duration `envconfig:"FINANCE_RATE_LIMIT_WINDOW" default:"1m"`
	MaxRequests int           `envconfig:"FINANCE_RATE_LIMIT_MAX_REQUESTS" default:"60"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FINANCE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3100"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FINANCE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DBDriverSQLite)
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
