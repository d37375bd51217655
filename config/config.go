package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is resolved once at startup and handed to every constructor.
type Config struct {
	HTTPAddr  string        `env:"HTTP_ADDR" envDefault:":8000"`
	BaseURL   string        `env:"BASE_URL" envDefault:"http://localhost:8000"`
	JWTSecret string        `env:"JWT_SECRET" envDefault:"l=ax+b"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`
	DBUser     string `env:"DB_USER" envDefault:"root"`
	DBPass     string `env:"DB_PASS" envDefault:"root"`
	DBName     string `env:"DB_NAME" envDefault:"zyncrate"`
	DBNameTest string `env:"DB_NAME_TEST" envDefault:"zyncrate_test"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	Storage StorageConfig

	RabbitMQURL      string `env:"RABBITMQ_URL"`
	RabbitMQHost     string `env:"RABBITMQ_HOST" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUser     string `env:"RABBITMQ_USER" envDefault:"guest"`
	RabbitMQPass     string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`
	RabbitMQPrefetch int    `env:"RABBITMQ_PREFETCH" envDefault:"8"`

	DeleteWorkerConcurrency int             `env:"DELETE_WORKER_CONCURRENCY" envDefault:"4"`
	DeleteRate              float64         `env:"DELETE_RATE" envDefault:"20"`
	DeleteBurst             int             `env:"DELETE_BURST" envDefault:"10"`
	DeleteRetryMax          int             `env:"DELETE_RETRY_MAX" envDefault:"5"`
	DeleteRetryDelays       []time.Duration `env:"DELETE_RETRY_DELAYS" envSeparator:"," envDefault:"10s,30s,2m,10m,30m"`

	Limits Limits

	DefaultExpiryHours  int `env:"DEFAULT_EXPIRY_HOURS" envDefault:"24"`
	DefaultMaxDownloads int `env:"DEFAULT_MAX_DOWNLOADS" envDefault:"5"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"12h"`
	SweepBatch    int           `env:"SWEEP_BATCH" envDefault:"500"`
	OrphanGrace   time.Duration `env:"ORPHAN_GRACE" envDefault:"1h"`
	CleanupToken  string        `env:"CLEANUP_TOKEN"`

	SettingsCacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"1m"`
	GuestSessionTTL  time.Duration `env:"GUEST_SESSION_TTL" envDefault:"168h"`

	SMTP SMTPConfig
}

// Limits are the base plan ceilings; rows in the settings table override them.
type Limits struct {
	Guest    PlanLimits `envPrefix:"LIMITS_GUEST_"`
	UserFree PlanLimits `envPrefix:"LIMITS_USER_FREE_"`
	UserPro  PlanLimits `envPrefix:"LIMITS_USER_PRO_"`
}

type PlanLimits struct {
	MaxUploadSizeMB int64 `env:"MAX_UPLOAD_SIZE_MB"`
	MaxExpiryHours  int   `env:"MAX_EXPIRY_HOURS"`
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     string `env:"SMTP_PORT"`
	User     string `env:"SMTP_USER"`
	Pass     string `env:"SMTP_PASS"`
	From     string `env:"SMTP_FROM"`
	TLS      bool   `env:"SMTP_TLS"`
	StartTLS bool   `env:"SMTP_STARTTLS"`
}

// Enabled reports whether enough settings are present to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != "" && s.User != "" && s.Pass != "" && s.From != ""
}

// DefaultLimits mirrors the plans the service shipped with.
func DefaultLimits() Limits {
	return Limits{
		Guest:    PlanLimits{MaxUploadSizeMB: 500, MaxExpiryHours: 24},
		UserFree: PlanLimits{MaxUploadSizeMB: 500, MaxExpiryHours: 48},
		UserPro:  PlanLimits{MaxUploadSizeMB: 2000, MaxExpiryHours: 168}, // 7 days
	}
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{Limits: DefaultLimits()}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.RabbitMQURL == "" {
		cfg.RabbitMQURL = fmt.Sprintf(
			"amqp://%s:%s@%s:%s/%s",
			url.PathEscape(cfg.RabbitMQUser),
			url.PathEscape(cfg.RabbitMQPass),
			cfg.RabbitMQHost,
			cfg.RabbitMQPort,
			url.PathEscape(cfg.RabbitMQVhost),
		)
	}
	if err := cfg.Storage.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MySQLDSN builds the gorm mysql DSN for the given database name.
func (c Config) MySQLDSN(dbName string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		dbName,
	)
}
