package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/BrianNzangi/workit-ecommerce-sub003/pkg/database"
	pkgconfig "github.com/BrianNzangi/workit-ecommerce-sub003/pkg/config"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Payment gateways.
const (
	GatewayMock = "mock"
	GatewayHTTP = "http"
)

// Config holds all configuration for the order engine.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"ORDER_HTTP_PORT" envDefault:"8004"`

	StoreDriver string `env:"ORDER_STORE_DRIVER" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"ORDER_DB_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"ORDER_DB_PORT" envDefault:"5432"`
	PostgresUser string `env:"ORDER_DB_USER" envDefault:"ecommerce"`
	PostgresPass string `env:"ORDER_DB_PASSWORD" envDefault:"ecommerce"`
	PostgresDB   string `env:"ORDER_DB_NAME" envDefault:"order_db"`
	PostgresSSL  string `env:"ORDER_DB_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns        int32         `env:"ORDER_DB_MAX_CONNS" envDefault:"25"`
	DBMinConns        int32         `env:"ORDER_DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime time.Duration `env:"ORDER_DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime time.Duration `env:"ORDER_DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// Order engine
	DefaultCurrency   string `env:"ORDER_DEFAULT_CURRENCY" envDefault:"USD"`
	CodeMaxAttempts   int    `env:"ORDER_CODE_MAX_ATTEMPTS" envDefault:"5"`
	StrictTransitions bool   `env:"ORDER_STRICT_TRANSITIONS" envDefault:"false"`
	BcryptCost        int    `env:"ORDER_BCRYPT_COST" envDefault:"12"`

	// Per-IP limit on checkout and payment writes. 0 disables it.
	CheckoutRateLimitRPS   float64 `env:"ORDER_CHECKOUT_RATE_LIMIT_RPS" envDefault:"20"`
	CheckoutRateLimitBurst int     `env:"ORDER_CHECKOUT_RATE_LIMIT_BURST" envDefault:"40"`

	// Kafka
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	EventsEnabled bool     `env:"ORDER_EVENTS_ENABLED" envDefault:"true"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AnalyticsEnabled bool `env:"ORDER_ANALYTICS_ENABLED" envDefault:"false"`

	// Payment gateway
	PaymentGateway     string        `env:"PAYMENT_GATEWAY" envDefault:"mock"`
	PaymentBaseURL     string        `env:"PAYMENT_GATEWAY_BASE_URL"`
	PaymentSecretKey   string        `env:"PAYMENT_GATEWAY_SECRET_KEY"`
	PaymentCallbackURL string        `env:"PAYMENT_GATEWAY_CALLBACK_URL"`
	PaymentTimeout     time.Duration `env:"PAYMENT_GATEWAY_TIMEOUT" envDefault:"15s"`

	// OpenTelemetry. An empty endpoint disables export.
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofEnabled      bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`

	SlowQueryThresholdMs int `env:"ORDER_LOG_SLOW_QUERY_MS" envDefault:"200"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load order config: %w", err)
	}
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
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
	switch c.StoreDriver {
	case DriverPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("ORDER_DB_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("ORDER_DB_USER is required")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("ORDER_DB_MIN_CONNS (%d) must not exceed ORDER_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("ORDER_STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver)
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("ORDER_DEFAULT_CURRENCY must be a 3-letter ISO code, got %q", c.DefaultCurrency)
	}
	if c.CodeMaxAttempts < 1 {
		return fmt.Errorf("ORDER_CODE_MAX_ATTEMPTS must be > 0, got %d", c.CodeMaxAttempts)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("ORDER_BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.CheckoutRateLimitRPS < 0 {
		return fmt.Errorf("ORDER_CHECKOUT_RATE_LIMIT_RPS must not be negative, got %f", c.CheckoutRateLimitRPS)
	}
	if c.AnalyticsEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when ORDER_ANALYTICS_ENABLED is set")
	}
	switch c.PaymentGateway {
	case GatewayMock:
	case GatewayHTTP:
		if c.PaymentBaseURL == "" {
			return fmt.Errorf("PAYMENT_GATEWAY_BASE_URL is required for the http gateway")
		}
		if c.PaymentSecretKey == "" {
			return fmt.Errorf("PAYMENT_GATEWAY_SECRET_KEY is required for the http gateway")
		}
	default:
		return fmt.Errorf("PAYMENT_GATEWAY must be %q or %q, got %q", GatewayMock, GatewayHTTP, c.PaymentGateway)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	for _, cidr := range c.PprofAllowedCIDRs {
		if _, err := netip.ParsePrefix(strings.TrimSpace(cidr)); err != nil {
			return fmt.Errorf("invalid PPROF_ALLOWED_CIDRS entry %q: %w", cidr, err)
		}
	}
	return nil
}

// EventsActive reports whether order events should be published.
func (c *Config) EventsActive() bool {
	return c.EventsEnabled && len(c.KafkaBrokers) > 0
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}
