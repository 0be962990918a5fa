package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection, etc.), security settings
// - default: Values common across all environments (timeouts, windows, etc.), standard settings
// -----------------------------------------------------------------------------

type Config struct {
	App       AppConfig
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	JWT       JWTConfig
	Payments  PaymentsConfig
	Queue     QueueConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Env string `envconfig:"APP_ENV" default:"development"`
}

func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	TimeZone string `envconfig:"DB_TIMEZONE" default:"UTC"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
}

type JWTConfig struct {
	Secret   string `envconfig:"JWT_SECRET" required:"true"`
	Duration string `envconfig:"JWT_DURATION" default:"24h"`
}

// PaymentsConfig carries the payment-provider integration settings.
// WebhookSecret signs inbound notifications; an empty value disables
// verification, which is only acceptable outside production.
type PaymentsConfig struct {
	BaseURL              string        `envconfig:"PAYMENTS_BASE_URL" default:"https://api.paymongo.com/v1"`
	SecretKey            string        `envconfig:"PAYMENTS_SECRET_KEY" default:""`
	WebhookSecret        string        `envconfig:"PAYMENTS_WEBHOOK_SECRET" default:""`
	SignatureHeader      string        `envconfig:"PAYMENTS_SIGNATURE_HEADER" default:"Paymongo-Signature"`
	Currency             string        `envconfig:"PAYMENTS_CURRENCY" default:"PHP"`
	ProcessingStaleAfter time.Duration `envconfig:"PAYMENTS_PROCESSING_STALE_AFTER" default:"5m"`
	PendingTimeout       time.Duration `envconfig:"PAYMENTS_PENDING_TIMEOUT" default:"30m"`
	SweepInterval        time.Duration `envconfig:"PAYMENTS_SWEEP_INTERVAL" default:"1m"`
	SupportsPaidStatus   bool          `envconfig:"PAYMENTS_SUPPORTS_PAID_STATUS" default:"true"`
	PlatformFeeRate      float64       `envconfig:"PAYMENTS_PLATFORM_FEE_RATE" default:"0.10"`
}

type QueueConfig struct {
	RejoinCooldown time.Duration `envconfig:"QUEUE_REJOIN_COOLDOWN" default:"5m"`
}

type RateLimitConfig struct {
	Window       time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	MaxPerWindow int           `envconfig:"RATE_LIMIT_MAX_PER_WINDOW" default:"10"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&timezone=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.TimeZone,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces settings that must not be left unset in production.
// A missing webhook secret would silently accept forged payment events.
func (c Config) Validate() error {
	if c.App.IsProduction() && c.Payments.WebhookSecret == "" {
		return fmt.Errorf("PAYMENTS_WEBHOOK_SECRET is required in production")
	}
	if c.App.IsProduction() && c.Payments.SecretKey == "" {
		return fmt.Errorf("PAYMENTS_SECRET_KEY is required in production")
	}
	return nil
}

func NewTestConfig() Config {
	return Config{
		App: AppConfig{Env: "test"},
		Server: ServerConfig{
			Port: "8889",
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433",
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
			TimeZone: "UTC",
		},
		Log: LogConfig{
			Level:      "error",
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		JWT: JWTConfig{
			Secret:   "test-jwt-secret",
			Duration: "24h",
		},
		Payments: PaymentsConfig{
			Currency:             "PHP",
			ProcessingStaleAfter: 5 * time.Minute,
			PendingTimeout:       30 * time.Minute,
			SweepInterval:        time.Minute,
			SupportsPaidStatus:   true,
			PlatformFeeRate:      0.10,
		},
		Queue: QueueConfig{
			RejoinCooldown: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Window:       time.Minute,
			MaxPerWindow: 10,
		},
	}
}
