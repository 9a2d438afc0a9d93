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
	Sessions     SessionsConfig
	Navigation   NavigationConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"ORDERFLOW_APP_ENV" required:"true"`
	Port         string   `envconfig:"ORDERFLOW_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"ORDERFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"ORDERFLOW_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"ORDERFLOW_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERFLOW_DB_DSN"`
	Driver string `envconfig:"ORDERFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERFLOW_DB_USER"`
	LegacyPassword string `envconfig:"ORDERFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERFLOW_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"ORDERFLOW_SQLITE_PATH" default:"orderflow.db"`

	MaxOpenConns    int           `envconfig:"ORDERFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the duration above which a statement is logged at warn.
	SlowQuery time.Duration `envconfig:"ORDERFLOW_DB_SLOW_QUERY" default:"200ms"`
}

// IsSQLite reports whether the connection targets the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERFLOW_REDIS_URL"`
	Address      string        `envconfig:"ORDERFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"ORDERFLOW_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"ORDERFLOW_AUTO_MIGRATE" default:"false"`
	RequireIfMatch bool `envconfig:"ORDERFLOW_REQUIRE_IF_MATCH" default:"false"`
}

type SessionsConfig struct {
	MaxItems        int           `envconfig:"ORDERFLOW_SESSION_MAX_ITEMS" default:"200"`
	IdempotencyTTL  time.Duration `envconfig:"ORDERFLOW_SESSION_IDEMPOTENCY_TTL" default:"24h"`
	ClientTimeout   time.Duration `envconfig:"ORDERFLOW_SESSION_CLIENT_TIMEOUT" default:"15s"`
	ClientBaseURL   string        `envconfig:"ORDERFLOW_SESSION_CLIENT_BASE_URL" default:"http://localhost:8080"`
	DefaultCurrency string        `envconfig:"ORDERFLOW_DEFAULT_CURRENCY" default:"UAH"`
}

type NavigationConfig struct {
	StateTTL time.Duration `envconfig:"ORDERFLOW_NAVIGATION_STATE_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"ORDERFLOW_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"ORDERFLOW_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	SessionsTopic        string `envconfig:"ORDERFLOW_PUBSUB_SESSIONS_TOPIC" default:"orderflow-item-sessions"`
	SessionsSubscription string `envconfig:"ORDERFLOW_PUBSUB_SESSIONS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"ORDERFLOW_CRON_INTERVAL" default:"1h"`
	AbandonedSessionTTL time.Duration `envconfig:"ORDERFLOW_CRON_ABANDONED_SESSION_TTL" default:"72h"`
	ReapBatchSize       int           `envconfig:"ORDERFLOW_CRON_REAP_BATCH_SIZE" default:"100"`
	OutboxRetentionDays int           `envconfig:"ORDERFLOW_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
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
