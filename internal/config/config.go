// Package config provides centralized configuration management for the
// import service. It loads settings from environment variables with
// sensible defaults and validates everything on startup to fail fast on
// misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// RequestTimeout bounds one request end to end. Large synchronous
	// imports can legitimately run for minutes (default: 15m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"15m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RedisConfig holds the job registry backend. An empty Addr selects the
// in-process store instead.
type RedisConfig struct {
	// Addr is the Redis host:port. Leave empty to track jobs in memory.
	Addr string `env:"REDIS_ADDR"`

	// Password authenticates against Redis when set.
	Password string `env:"REDIS_PASSWORD"`

	// DB is the Redis logical database (default: 0)
	DB int `env:"REDIS_DB" default:"0"`
}

// ImportConfig holds the pipeline settings.
type ImportConfig struct {
	// MaxFileSize is the upload ceiling in bytes (default: 500MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"524288000"`

	// BatchSize is how many valid records accumulate per commit (default: 500)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"500"`

	// MaxConcurrentBatches caps in-flight batch commits (default: 3)
	MaxConcurrentBatches int `env:"IMPORT_MAX_CONCURRENT_BATCHES" default:"3"`

	// JobRetention is how long finished jobs stay pollable (default: 1h)
	JobRetention time.Duration `env:"IMPORT_JOB_RETENTION" default:"1h"`

	// JobSweepInterval is how often the in-memory job store purges
	// expired entries (default: 5m)
	JobSweepInterval time.Duration `env:"IMPORT_JOB_SWEEP_INTERVAL" default:"5m"`

	// StrictMode makes the phone column mandatory (default: false)
	StrictMode bool `env:"IMPORT_STRICT_MODE" default:"false"`

	// Optional row checks, all off by default.
	CheckDuplicatePhone bool `env:"IMPORT_CHECK_DUPLICATE_PHONE" default:"false"`
	CheckDuplicateEmail bool `env:"IMPORT_CHECK_DUPLICATE_EMAIL" default:"false"`
	ValidatePhoneFormat bool `env:"IMPORT_VALIDATE_PHONE_FORMAT" default:"false"`
	ValidateEmailFormat bool `env:"IMPORT_VALIDATE_EMAIL_FORMAT" default:"false"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
