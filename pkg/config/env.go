package config

// EnvPrefix is passed to envconfig; every field declares its full variable name.
const EnvPrefix = "SHOPFLOOR"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                = "SHOPFLOOR_APP_ENV"
	EnvPort                  = "SHOPFLOOR_APP_PORT"
	EnvDBDSN                 = "SHOPFLOOR_DB_DSN"
	EnvDBHost                = "SHOPFLOOR_DB_HOST"
	EnvDBUser                = "SHOPFLOOR_DB_USER"
	EnvDBName                = "SHOPFLOOR_DB_NAME"
	EnvUseSQLite             = "SHOPFLOOR_USE_SQLITE"
	EnvRedisURL              = "SHOPFLOOR_REDIS_URL"
	EnvJWTSecret             = "SHOPFLOOR_JWT_SECRET"
	EnvJWTIssuer             = "SHOPFLOOR_JWT_ISSUER"
	EnvGCPProjectID          = "SHOPFLOOR_GCP_PROJECT_ID"
	EnvInvoiceDefaultTaxRate = "SHOPFLOOR_INVOICE_DEFAULT_TAX_RATE"
	EnvInvoiceLaborRateCents = "SHOPFLOOR_INVOICE_LABOR_RATE_CENTS"
	EnvInvoiceNetDays        = "SHOPFLOOR_INVOICE_NET_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
