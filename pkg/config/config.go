package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Invoicing    InvoicingConfig
	Cron         CronConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Invoicing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPFLOOR_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPFLOOR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHOPFLOOR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPFLOOR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPFLOOR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPFLOOR_DB_DSN"`
	Driver string `envconfig:"SHOPFLOOR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPFLOOR_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPFLOOR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPFLOOR_DB_USER"`
	LegacyPassword string `envconfig:"SHOPFLOOR_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPFLOOR_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPFLOOR_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"SHOPFLOOR_SQLITE_PATH" default:"shopfloor.db"`

	MaxOpenConns    int           `envconfig:"SHOPFLOOR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPFLOOR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPFLOOR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPFLOOR_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SHOPFLOOR_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPFLOOR_REDIS_URL"`
	Address      string        `envconfig:"SHOPFLOOR_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPFLOOR_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPFLOOR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPFLOOR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPFLOOR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPFLOOR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPFLOOR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPFLOOR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint has been configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// CORSConfig lists the browser origins allowed to call the API. An empty
// list disables the CORS handler.
type CORSConfig struct {
	AllowedOrigins []string      `envconfig:"SHOPFLOOR_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxAge         time.Duration `envconfig:"SHOPFLOOR_CORS_MAX_AGE" default:"5m"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPFLOOR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPFLOOR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOPFLOOR_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHOPFLOOR_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHOPFLOOR_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"SHOPFLOOR_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SHOPFLOOR_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"SHOPFLOOR_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	WorkOrdersTopic string `envconfig:"SHOPFLOOR_PUBSUB_WORK_ORDERS_TOPIC" default:"shopfloor-work-orders"`
	InventoryTopic  string `envconfig:"SHOPFLOOR_PUBSUB_INVENTORY_TOPIC" default:"shopfloor-inventory"`
	InvoicesTopic   string `envconfig:"SHOPFLOOR_PUBSUB_INVOICES_TOPIC" default:"shopfloor-invoices"`

	// OrderedDelivery keys each message by aggregate id so one work order's
	// events reach subscribers in commit order.
	OrderedDelivery bool `envconfig:"SHOPFLOOR_PUBSUB_ORDERED_DELIVERY" default:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHOPFLOOR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHOPFLOOR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHOPFLOOR_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// MetricsAddr serves /metrics from the publisher when set, e.g. ":9102".
	MetricsAddr string `envconfig:"SHOPFLOOR_OUTBOX_METRICS_ADDR"`
}

type InvoicingConfig struct {
	DefaultTaxRate   string `envconfig:"SHOPFLOOR_INVOICE_DEFAULT_TAX_RATE" default:"0"`
	LaborRateCents   int    `envconfig:"SHOPFLOOR_INVOICE_LABOR_RATE_CENTS" default:"9500"`
	NetDays          int    `envconfig:"SHOPFLOOR_INVOICE_NET_DAYS" default:"30"`
	NumberPrefix     string `envconfig:"SHOPFLOOR_INVOICE_NUMBER_PREFIX" default:"INV"`
	WorkOrderPrefix  string `envconfig:"SHOPFLOOR_WORK_ORDER_NUMBER_PREFIX" default:"WO"`
	defaultTaxParsed decimal.Decimal
}

// TaxRate returns the parsed default tax rate.
func (i InvoicingConfig) TaxRate() decimal.Decimal {
	return i.defaultTaxParsed
}

// DueIn returns how long after creation an invoice is due.
func (i InvoicingConfig) DueIn() time.Duration {
	if i.NetDays <= 0 {
		return 0
	}
	return time.Duration(i.NetDays) * 24 * time.Hour
}

func (i *InvoicingConfig) validate() error {
	raw := strings.TrimSpace(i.DefaultTaxRate)
	if raw == "" {
		raw = "0"
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", EnvInvoiceDefaultTaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1", EnvInvoiceDefaultTaxRate)
	}
	if !rate.Equal(rate.Round(4)) {
		return fmt.Errorf("%s allows at most four decimal places", EnvInvoiceDefaultTaxRate)
	}
	if i.LaborRateCents < 0 {
		return fmt.Errorf("%s must not be negative", EnvInvoiceLaborRateCents)
	}
	i.defaultTaxParsed = rate
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SHOPFLOOR_CRON_INTERVAL" default:"1h"`
	LockKey  string        `envconfig:"SHOPFLOOR_CRON_LOCK_KEY" default:"cron"`
	LockTTL  time.Duration `envconfig:"SHOPFLOOR_CRON_LOCK_TTL" default:"55m"`

	OutboxRetention      time.Duration `envconfig:"SHOPFLOOR_CRON_OUTBOX_RETENTION" default:"720h"`
	OutboxRetentionBatch int           `envconfig:"SHOPFLOOR_CRON_OUTBOX_RETENTION_BATCH" default:"1000"`

	MetricsAddr string `envconfig:"SHOPFLOOR_CRON_METRICS_ADDR"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
