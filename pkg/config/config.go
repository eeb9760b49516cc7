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
	DB           DBConfig
	Redis        RedisConfig
	Import       ImportConfig
	Reservation  ReservationConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Import.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MATERIALS_APP_ENV" required:"true"`
	Port         string `envconfig:"MATERIALS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"MATERIALS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MATERIALS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MATERIALS_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MATERIALS_DB_DSN"`
	Driver string `envconfig:"MATERIALS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MATERIALS_DB_HOST"`
	LegacyPort     int    `envconfig:"MATERIALS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MATERIALS_DB_USER"`
	LegacyPassword string `envconfig:"MATERIALS_DB_PASSWORD"`
	LegacyName     string `envconfig:"MATERIALS_DB_NAME"`
	LegacySSLMode  string `envconfig:"MATERIALS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MATERIALS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MATERIALS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MATERIALS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MATERIALS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite one.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

// RedisConfig is optional; when neither URL nor address is set the reservation
// manager falls back to in-process key locks.
type RedisConfig struct {
	URL          string        `envconfig:"MATERIALS_REDIS_URL"`
	Address      string        `envconfig:"MATERIALS_REDIS_ADDR"`
	Password     string        `envconfig:"MATERIALS_REDIS_PASSWORD"`
	DB           int           `envconfig:"MATERIALS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MATERIALS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MATERIALS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MATERIALS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MATERIALS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MATERIALS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type ImportConfig struct {
	DirectDelimiter string `envconfig:"MATERIALS_IMPORT_DIRECT_DELIMITER" default:";"`
	StagedDelimiter string `envconfig:"MATERIALS_IMPORT_STAGED_DELIMITER" default:","`
	MaxUploadMB     int    `envconfig:"MATERIALS_IMPORT_MAX_UPLOAD_MB" default:"20"`
	BatchSize       int    `envconfig:"MATERIALS_IMPORT_BATCH_SIZE" default:"500"`
}

// MaxUploadBytes returns the upload cap in bytes.
func (i ImportConfig) MaxUploadBytes() int64 {
	if i.MaxUploadMB <= 0 {
		return 0
	}
	return int64(i.MaxUploadMB) << 20
}

// DirectDelimiterRune returns the CSV delimiter for direct imports.
func (i ImportConfig) DirectDelimiterRune() rune {
	return firstRune(i.DirectDelimiter, ';')
}

// StagedDelimiterRune returns the CSV delimiter for staged imports.
func (i ImportConfig) StagedDelimiterRune() rune {
	return firstRune(i.StagedDelimiter, ',')
}

func firstRune(value string, fallback rune) rune {
	for _, r := range value {
		return r
	}
	return fallback
}

func (i ImportConfig) validate() error {
	for env, value := range map[string]string{
		EnvImportDirectDelimiter: i.DirectDelimiter,
		EnvImportStagedDelimiter: i.StagedDelimiter,
	} {
		if len([]rune(value)) != 1 {
			return fmt.Errorf("%s must be a single character, got %q", env, value)
		}
	}
	return nil
}

type ReservationConfig struct {
	LockTTL  time.Duration `envconfig:"MATERIALS_RESERVATION_LOCK_TTL" default:"30s"`
	LockWait time.Duration `envconfig:"MATERIALS_RESERVATION_LOCK_WAIT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MATERIALS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MATERIALS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = DefaultSQLiteDSN
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
