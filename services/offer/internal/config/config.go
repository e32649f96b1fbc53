package config

import (
	"fmt"
	"net"
	"time"

	pkgconfig "github.com/tourhub/offers/pkg/config"
	"github.com/tourhub/offers/services/offer/internal/domain"
)

// Config holds all configuration for the offer service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int `env:"OFFER_HTTP_PORT" envDefault:"8010"`
	HTTPTimeoutSeconds int `env:"OFFER_HTTP_TIMEOUT_SECONDS" envDefault:"15"`

	// Per-tenant rate limit on the offer API. Zero disables it.
	RateLimitRPS   float64 `env:"OFFER_RATE_LIMIT_RPS" envDefault:"100"`
	RateLimitBurst int     `env:"OFFER_RATE_LIMIT_BURST" envDefault:"200"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"tourhub"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"tourhub_secret"`
	PostgresDB   string `env:"OFFER_DB_NAME" envDefault:"offer_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis active-offer cache. An empty host disables the cache.
	RedisHost             string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort             int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword         string `env:"REDIS_PASSWORD"`
	RedisDB               int    `env:"OFFER_REDIS_DB" envDefault:"0"`
	CacheTTLSeconds       int    `env:"OFFER_CACHE_TTL_SECONDS" envDefault:"60"`
	FeaturedMaxAgeSeconds int    `env:"OFFER_FEATURED_MAX_AGE_SECONDS" envDefault:"60"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Timezone offer windows and travel dates are evaluated in.
	Timezone string `env:"OFFER_TIMEZONE" envDefault:"UTC"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load offer config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.HTTPTimeoutSeconds < 1 {
		return fmt.Errorf("OFFER_HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSeconds)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("OFFER_RATE_LIMIT_RPS and OFFER_RATE_LIMIT_BURST must not be negative")
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("OFFER_CACHE_TTL_SECONDS must not be negative, got %d", c.CacheTTLSeconds)
	}
	if c.CacheTTL() > domain.ActiveHorizon {
		return fmt.Errorf("OFFER_CACHE_TTL_SECONDS must be at most %d, got %d",
			int(domain.ActiveHorizon/time.Second), c.CacheTTLSeconds)
	}
	if c.FeaturedMaxAgeSeconds < 0 {
		return fmt.Errorf("OFFER_FEATURED_MAX_AGE_SECONDS must not be negative, got %d", c.FeaturedMaxAgeSeconds)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid OFFER_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	for _, cidr := range c.PprofAllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid PPROF_ALLOWED_CIDRS entry %q", cidr)
		}
	}
	return nil
}

// Location returns the configured evaluation timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CacheEnabled reports whether the Redis active-offer cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisHost != "" && c.CacheTTLSeconds > 0
}

// CacheTTL is the lifetime of a cached active-offer list.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
