package config

// EnvPrefix is handed to envconfig; every field carries an explicit envconfig tag.
const EnvPrefix = "MATERIALS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:materials.db?_foreign_keys=on"
)

const (
	EnvAppEnv   = "MATERIALS_APP_ENV"
	EnvPort     = "MATERIALS_APP_PORT"
	EnvLogLevel = "MATERIALS_LOG_LEVEL"

	EnvDBDSN  = "MATERIALS_DB_DSN"
	EnvDBHost = "MATERIALS_DB_HOST"
	EnvDBUser = "MATERIALS_DB_USER"
	EnvDBName = "MATERIALS_DB_NAME"

	EnvRedisURL = "MATERIALS_REDIS_URL"

	EnvImportDirectDelimiter = "MATERIALS_IMPORT_DIRECT_DELIMITER"
	EnvImportStagedDelimiter = "MATERIALS_IMPORT_STAGED_DELIMITER"

	EnvUseSQLite = "MATERIALS_USE_SQLITE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
