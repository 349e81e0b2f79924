package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "MONEYMANAGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MONEYMANAGER_DB_DSN"
	EnvDBHost = "MONEYMANAGER_DB_HOST"
	EnvDBUser = "MONEYMANAGER_DB_USER"
	EnvDBName = "MONEYMANAGER_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	EmailOutbox  EmailOutboxConfig
	Mail         MailConfig
	Activation   ActivationConfig
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
	Env          string `envconfig:"MONEYMANAGER_APP_ENV" required:"true"`
	Port         string `envconfig:"MONEYMANAGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"MONEYMANAGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MONEYMANAGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MONEYMANAGER_SERVICE_KIND" default:"api"`
	// MetricsAddr is the scrape listener for worker binaries; the API serves
	// /metrics on its own port.
	MetricsAddr string `envconfig:"MONEYMANAGER_METRICS_ADDR" default:":9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"MONEYMANAGER_DB_DSN"`
	Driver string `envconfig:"MONEYMANAGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MONEYMANAGER_DB_HOST"`
	LegacyPort     int    `envconfig:"MONEYMANAGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MONEYMANAGER_DB_USER"`
	LegacyPassword string `envconfig:"MONEYMANAGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"MONEYMANAGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"MONEYMANAGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MONEYMANAGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MONEYMANAGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MONEYMANAGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MONEYMANAGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MONEYMANAGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MONEYMANAGER_REDIS_ADDR"`
	Password     string        `envconfig:"MONEYMANAGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"MONEYMANAGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MONEYMANAGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MONEYMANAGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MONEYMANAGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MONEYMANAGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MONEYMANAGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MONEYMANAGER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MONEYMANAGER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MONEYMANAGER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MONEYMANAGER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MONEYMANAGER_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MONEYMANAGER_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"MONEYMANAGER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MONEYMANAGER_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MONEYMANAGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MONEYMANAGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ActivationTopic        string `envconfig:"MONEYMANAGER_PUBSUB_ACTIVATION_TOPIC" default:"profile-activation"`
	ActivationSubscription string `envconfig:"MONEYMANAGER_PUBSUB_ACTIVATION_SUBSCRIPTION" required:"true"`
	// Consumer pool size for the activation subscription; the broker may
	// deliver to this many handlers concurrently.
	ConsumerConcurrency int `envconfig:"MONEYMANAGER_PUBSUB_CONSUMER_CONCURRENCY" default:"3"`
	// The activation subscription must be provisioned with a dead-letter
	// policy targeting this topic; pkg/pubsub refuses to start otherwise.
	DeadLetterTopic string `envconfig:"MONEYMANAGER_PUBSUB_DEAD_LETTER_TOPIC" default:"profile-activation-dlq"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MONEYMANAGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MONEYMANAGER_OUTBOX_PUBLISH_POLL_MS" default:"30000"`
	MaxRetries     int `envconfig:"MONEYMANAGER_OUTBOX_MAX_RETRIES" default:"5"`
}

type EmailOutboxConfig struct {
	SweepBatchSize  int           `envconfig:"MONEYMANAGER_EMAIL_OUTBOX_SWEEP_BATCH_SIZE" default:"10"`
	SweepInterval   time.Duration `envconfig:"MONEYMANAGER_EMAIL_OUTBOX_SWEEP_INTERVAL" default:"60s"`
	EagerBufferSize int           `envconfig:"MONEYMANAGER_EMAIL_OUTBOX_EAGER_BUFFER" default:"64"`
}

type MailConfig struct {
	SMTPHost string `envconfig:"MONEYMANAGER_SMTP_HOST" required:"true"`
	SMTPPort int    `envconfig:"MONEYMANAGER_SMTP_PORT" default:"587"`
	Username string `envconfig:"MONEYMANAGER_SMTP_USERNAME"`
	Password string `envconfig:"MONEYMANAGER_SMTP_PASSWORD"`
	From     string `envconfig:"MONEYMANAGER_SMTP_FROM" required:"true"`
}

type ActivationConfig struct {
	// Base URL stamped into activation links, e.g. https://app.moneymanager.in
	BaseURL     string        `envconfig:"MONEYMANAGER_ACTIVATION_BASE_URL" required:"true"`
	TokenExpiry time.Duration `envconfig:"MONEYMANAGER_ACTIVATION_TOKEN_EXPIRY" default:"24h"`
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
