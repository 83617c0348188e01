package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the service.
type Config struct {
	Port string `mapstructure:"PORT"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBPath      string `mapstructure:"DB_PATH"`
	SeedPath    string `mapstructure:"SEED_PATH"`

	RedisURL    string        `mapstructure:"REDIS_URL"`
	RedisPrefix string        `mapstructure:"REDIS_PREFIX"`
	CacheTTL    time.Duration `mapstructure:"CACHE_TTL"`

	AMQPURL        string `mapstructure:"AMQP_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	UpstreamBaseURL string        `mapstructure:"UPSTREAM_BASE_URL"`
	UpstreamAPIKey  string        `mapstructure:"UPSTREAM_API_KEY"`
	DispatchBaseURL string        `mapstructure:"DISPATCH_BASE_URL"`
	HTTPTimeout     time.Duration `mapstructure:"HTTP_TIMEOUT"`

	JWTSecret   string `mapstructure:"JWT_SECRET"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	Timezone           string `mapstructure:"TIMEZONE"`
	RefreshSchedule    string `mapstructure:"REFRESH_SCHEDULE"`
	RefreshConcurrency int    `mapstructure:"REFRESH_CONCURRENCY"`

	ServiceVersion  string  `mapstructure:"SERVICE_VERSION"`
	Environment     string  `mapstructure:"APP_ENV"`
	OTelEndpoint    string  `mapstructure:"OTEL_ENDPOINT"`
	OTelSampleRatio float64 `mapstructure:"OTEL_SAMPLE_RATIO"`
	LogLevel        string  `mapstructure:"LOG_LEVEL"`
}

var keys = []string{
	"PORT", "DB_DRIVER", "DATABASE_URL", "DB_PATH", "SEED_PATH",
	"REDIS_URL", "REDIS_PREFIX", "CACHE_TTL", "AMQP_URL", "EVENTS_EXCHANGE",
	"UPSTREAM_BASE_URL", "UPSTREAM_API_KEY", "DISPATCH_BASE_URL", "HTTP_TIMEOUT",
	"JWT_SECRET", "CORS_ORIGINS", "TIMEZONE", "REFRESH_SCHEDULE",
	"REFRESH_CONCURRENCY", "SERVICE_VERSION", "APP_ENV", "OTEL_ENDPOINT",
	"OTEL_SAMPLE_RATIO", "LOG_LEVEL",
}

// LoadConfig reads configuration from environment variables.
// The .env file is loaded into the environment by the caller.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "data/app.db")
	v.SetDefault("SEED_PATH", "data/seeds/subscriptions.json")
	v.SetDefault("REDIS_PREFIX", "choma")
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("EVENTS_EXCHANGE", "meal_timeline_events")
	v.SetDefault("HTTP_TIMEOUT", "10s")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("TIMEZONE", "Africa/Lagos")
	v.SetDefault("REFRESH_SCHEDULE", "@every 30s")
	v.SetDefault("REFRESH_CONCURRENCY", 4)
	v.SetDefault("SERVICE_VERSION", "dev")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
	v.SetDefault("LOG_LEVEL", "info")

	// Bind envs explicitly so Unmarshal sees keys without defaults.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.DBDriver) {
	case "sqlite", "sqlite3":
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not supported", c.DBDriver))
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}
	if c.RefreshConcurrency < 1 {
		errs = append(errs, errors.New("REFRESH_CONCURRENCY must be at least 1"))
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO %v must be between 0 and 1", c.OTelSampleRatio))
	}

	return errors.Join(errs...)
}

// Location returns the time zone that defines calendar days.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	out := make([]string, 0, 4)
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
