package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "ANALOGFAN"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ANALOGFAN_DB_DSN"
	EnvDBHost = "ANALOGFAN_DB_HOST"
	EnvDBUser = "ANALOGFAN_DB_USER"
	EnvDBName = "ANALOGFAN_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Carrier      CarrierConfig
	Mail         MailConfig
	Tracking     TrackingConfig
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
	Env          string `envconfig:"ANALOGFAN_APP_ENV" required:"true"`
	Port         string `envconfig:"ANALOGFAN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ANALOGFAN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ANALOGFAN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ANALOGFAN_DB_DSN"`
	Driver string `envconfig:"ANALOGFAN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ANALOGFAN_DB_HOST"`
	LegacyPort     int    `envconfig:"ANALOGFAN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ANALOGFAN_DB_USER"`
	LegacyPassword string `envconfig:"ANALOGFAN_DB_PASSWORD"`
	LegacyName     string `envconfig:"ANALOGFAN_DB_NAME"`
	LegacySSLMode  string `envconfig:"ANALOGFAN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ANALOGFAN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ANALOGFAN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ANALOGFAN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ANALOGFAN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ANALOGFAN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ANALOGFAN_REDIS_ADDR"`
	Password     string        `envconfig:"ANALOGFAN_REDIS_PASSWORD"`
	DB           int           `envconfig:"ANALOGFAN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ANALOGFAN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ANALOGFAN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ANALOGFAN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ANALOGFAN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ANALOGFAN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CarrierConfig holds the Sendcloud credentials the carrier gateway signs with.
type CarrierConfig struct {
	PublicKey string        `envconfig:"ANALOGFAN_SENDCLOUD_PUBLIC_KEY"`
	SecretKey string        `envconfig:"ANALOGFAN_SENDCLOUD_SECRET_KEY"`
	BaseURL   string        `envconfig:"ANALOGFAN_SENDCLOUD_BASE_URL" default:"https://panel.sendcloud.sc/api/v2/"`
	Timeout   time.Duration `envconfig:"ANALOGFAN_SENDCLOUD_TIMEOUT" default:"30s"`
	TestMode  bool          `envconfig:"ANALOGFAN_SENDCLOUD_TEST_MODE" default:"true"`
}

// Configured reports whether carrier credentials are present.
func (c CarrierConfig) Configured() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

type MailConfig struct {
	Host        string        `envconfig:"ANALOGFAN_SMTP_HOST"`
	Port        int           `envconfig:"ANALOGFAN_SMTP_PORT" default:"587"`
	Username    string        `envconfig:"ANALOGFAN_SMTP_USERNAME"`
	Password    string        `envconfig:"ANALOGFAN_SMTP_PASSWORD"`
	FromAddress string        `envconfig:"ANALOGFAN_SMTP_FROM" default:"orders@analogfan.example"`
	Timeout     time.Duration `envconfig:"ANALOGFAN_SMTP_TIMEOUT" default:"15s"`
}

// Configured reports whether an SMTP relay is available.
func (m MailConfig) Configured() bool {
	return m.Host != ""
}

// TrackingConfig bounds the public tracking lookup cache.
type TrackingConfig struct {
	CacheTTL time.Duration `envconfig:"ANALOGFAN_TRACKING_CACHE_TTL" default:"60s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ANALOGFAN_AUTO_MIGRATE" default:"false"`
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
