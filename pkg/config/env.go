package config

const (
	EnvPrefix = "ORDERFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv         = "ORDERFLOW_APP_ENV"
	EnvPort           = "ORDERFLOW_APP_PORT"
	EnvDBDSN          = "ORDERFLOW_DB_DSN"
	EnvDBHost         = "ORDERFLOW_DB_HOST"
	EnvDBUser         = "ORDERFLOW_DB_USER"
	EnvDBName         = "ORDERFLOW_DB_NAME"
	EnvUseSQLite      = "ORDERFLOW_USE_SQLITE"
	EnvSQLitePath     = "ORDERFLOW_SQLITE_PATH"
	EnvRedisURL       = "ORDERFLOW_REDIS_URL"
	EnvGCPProjectID   = "ORDERFLOW_GCP_PROJECT_ID"
	EnvSessionsTopic  = "ORDERFLOW_PUBSUB_SESSIONS_TOPIC"
	EnvOutboxMaxTries = "ORDERFLOW_OUTBOX_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
