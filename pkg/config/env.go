package config

const EnvPrefix = "FINANCE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv            = "FINANCE_APP_ENV"
	EnvPort              = "FINANCE_APP_PORT"
	EnvAppURL            = "FINANCE_APP_URL"
	EnvTimezone          = "FINANCE_TZ"
	EnvDBDSN             = "FINANCE_DB_DSN"
	EnvDBDriver          = "FINANCE_DB_DRIVER"
	EnvDBHost            = "FINANCE_DB_HOST"
	EnvDBUser            = "FINANCE_DB_USER"
	EnvDBName            = "FINANCE_DB_NAME"
	EnvRedisURL          = "FINANCE_REDIS_URL"
	EnvJWTSecret         = "FINANCE_JWT_SECRET"
	EnvAPIURLCore        = "FINANCE_API_URL_CORE"
	EnvAPIURLSetting     = "FINANCE_API_URL_SETTING"
	EnvDefaultDuesAmount = "FINANCE_DEFAULT_DUES_AMOUNT"
	EnvRateLimitMax      = "FINANCE_RATE_LIMIT_MAX_REQUESTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
