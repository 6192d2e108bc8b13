package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the attribution engine.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	ClickHouse  ClickHouseConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Attribution AttributionConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the PostgreSQL ledger database (spend,
// reported value, ad names).
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ClickHouseConfig configures the event warehouse (touchpoints, orders,
// sessions).
type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// AttributionConfig holds the engine defaults applied when a request omits
// a parameter.
type AttributionConfig struct {
	DefaultModel        string
	DefaultLookbackDays int
	DefaultHalfLifeDays float64
	DefaultCurrency     string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("ATTRIBUTION_HTTP_ADDR", ":8080"),
			Env:             getEnv("ATTRIBUTION_ENV", "development"),
			ShutdownTimeout: getDurationEnv("ATTRIBUTION_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("ATTRIBUTION_DB_HOST", "localhost"),
			Port:     getIntEnv("ATTRIBUTION_DB_PORT", 5432),
			User:     getEnv("ATTRIBUTION_DB_USER", "attribution"),
			Password: getEnv("ATTRIBUTION_DB_PASSWORD", "attribution_secret"),
			DBName:   getEnv("ATTRIBUTION_DB_NAME", "attribution"),
			SSLMode:  getEnv("ATTRIBUTION_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("ATTRIBUTION_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("ATTRIBUTION_DB_MIN_CONNS", 5),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnv("ATTRIBUTION_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("ATTRIBUTION_CLICKHOUSE_DB", "events"),
			User:     getEnv("ATTRIBUTION_CLICKHOUSE_USER", "default"),
			Password: getEnv("ATTRIBUTION_CLICKHOUSE_PASSWORD", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("ATTRIBUTION_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("ATTRIBUTION_REDIS_PASSWORD", ""),
			DB:       getIntEnv("ATTRIBUTION_REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getBoolEnv("ATTRIBUTION_RATE_LIMIT_ENABLED", true),
			MaxRequests: getIntEnv("ATTRIBUTION_RATE_LIMIT_MAX", 120),
			Window:      getDurationEnv("ATTRIBUTION_RATE_LIMIT_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("ATTRIBUTION_LOG_LEVEL", "info"),
			Format: getEnv("ATTRIBUTION_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("ATTRIBUTION_METRICS_ENABLED", true),
			Path:    getEnv("ATTRIBUTION_METRICS_PATH", "/metrics"),
		},
		Attribution: AttributionConfig{
			DefaultModel:        getEnv("ATTRIBUTION_DEFAULT_MODEL", "last_click"),
			DefaultLookbackDays: getIntEnv("ATTRIBUTION_DEFAULT_LOOKBACK_DAYS", 7),
			DefaultHalfLifeDays: getFloatEnv("ATTRIBUTION_DEFAULT_HALF_LIFE_DAYS", 7.0),
			DefaultCurrency:     getEnv("ATTRIBUTION_DEFAULT_CURRENCY", "USD"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Attribution.DefaultLookbackDays < 0 {
		return fmt.Errorf("ATTRIBUTION_DEFAULT_LOOKBACK_DAYS must not be negative")
	}
	if c.Attribution.DefaultHalfLifeDays <= 0 {
		return fmt.Errorf("ATTRIBUTION_DEFAULT_HALF_LIFE_DAYS must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("ATTRIBUTION_RATE_LIMIT_MAX must be positive when rate limiting is enabled")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
