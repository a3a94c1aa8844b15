package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/pavila/library/pkg/config"
	"github.com/pavila/library/pkg/database"
	"github.com/pavila/library/pkg/httpclient"
	"github.com/pavila/library/pkg/middleware"
	"github.com/pavila/library/pkg/tracing"
)

// Config holds all configuration for the review service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"REVIEW_HTTP_PORT" envDefault:"8082"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"library"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"library_secret"`
	PostgresDB   string `env:"REVIEW_DB_NAME" envDefault:"review_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Kafka
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaDLQEnabled bool     `env:"KAFKA_DLQ_ENABLED" envDefault:"true"`

	// Redis backs the consumer idempotency store; an empty host keeps it in memory.
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Book service existence check
	BookServiceURL      string `env:"BOOK_SERVICE_URL" envDefault:"http://localhost:8081"`
	BookExistsTimeoutMs int    `env:"BOOK_EXISTS_TIMEOUT_MS" envDefault:"2000"`

	// Circuit breaker around the book service
	CBFailureRatio     float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests      uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`
	CBOpenTimeoutSecs  int     `env:"CB_OPEN_TIMEOUT_SECONDS" envDefault:"15"`
	CBHalfOpenRequests uint32  `env:"CB_HALF_OPEN_REQUESTS" envDefault:"1"`

	// /api/info
	InfoMessage  string `env:"REVIEW_INFO_MESSAGE" envDefault:"Welcome to the review service"`
	BuildVersion string `env:"BUILD_VERSION" envDefault:"dev"`

	// Per-client token bucket on /api routes; RATE_LIMIT_RPS=0 disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	Tracing tracing.Config

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load(nil)
}

func load(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, vars); err != nil {
		return nil, fmt.Errorf("load review config: %w", err)
	}
	cfg.Tracing.ServiceName = "review-service"
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if u, err := url.Parse(c.BookServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BOOK_SERVICE_URL must be an absolute URL, got %q", c.BookServiceURL)
	}
	if c.BookExistsTimeoutMs <= 0 {
		return fmt.Errorf("BOOK_EXISTS_TIMEOUT_MS must be > 0, got %d", c.BookExistsTimeoutMs)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.Tracing.SampleRate)
	}
	return nil
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the idempotency store connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// BookExistsTimeout bounds one existence check, retries included.
func (c *Config) BookExistsTimeout() time.Duration {
	return time.Duration(c.BookExistsTimeoutMs) * time.Millisecond
}

// BookBreaker returns the circuit breaker settings for the book service.
func (c *Config) BookBreaker() httpclient.CircuitBreakerConfig {
	cb := httpclient.DefaultCircuitBreakerConfig("book-service")
	cb.FailureRatio = c.CBFailureRatio
	cb.MinRequests = c.CBMinRequests
	cb.MaxRequests = c.CBHalfOpenRequests
	cb.Timeout = time.Duration(c.CBOpenTimeoutSecs) * time.Second
	return cb
}

// Info is the body of GET /api/info.
func (c *Config) Info() string {
	return c.InfoMessage + " - " + c.BuildVersion
}

// RateLimit returns the per-client limit applied to the API routes.
func (c *Config) RateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{RPS: c.RateLimitRPS, Burst: c.RateLimitBurst}
}
