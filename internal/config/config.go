// Package config provides centralized configuration management for the comparison service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Compare  CompareConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, bounded by RequestTimeout)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 6m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"6m"`
}

// StoreConfig selects and configures the comparison store.
type StoreConfig struct {
	// Driver is the backend: postgres, bolt or memory (default: memory)
	Driver string `env:"STORE_DRIVER" default:"memory"`

	// DatabaseURL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// BoltPath is the database file for the bolt driver (default: csvdiff.db)
	BoltPath string `env:"STORE_BOLT_PATH" default:"csvdiff.db"`

	// RetentionDays is how long stored comparisons are kept; 0 keeps them forever (default: 30)
	RetentionDays int `env:"STORE_RETENTION_DAYS" default:"30"`

	// PruneInterval is how often expired comparisons are removed (default: 1h)
	PruneInterval time.Duration `env:"STORE_PRUNE_INTERVAL" default:"1h"`
}

// CompareConfig holds comparison processing settings.
type CompareConfig struct {
	// MaxFileSize is the maximum allowed size of each uploaded file in bytes (default: 100MB)
	MaxFileSize int64 `env:"COMPARE_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of comparisons running at once (default: 4)
	MaxConcurrent int `env:"COMPARE_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a comparison slot (default: 30s)
	MaxWaitTime time.Duration `env:"COMPARE_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single comparison (default: 5m)
	Timeout time.Duration `env:"COMPARE_TIMEOUT" default:"5m"`

	// Workers is the number of goroutines used for large cell diffs (default: 4)
	Workers int `env:"COMPARE_WORKERS" default:"4"`

	// MaxRows caps the data rows read from each file; 0 means unlimited (default: 0)
	MaxRows int `env:"COMPARE_MAX_ROWS" default:"0"`

	// Duplicates is the default duplicate key policy: fail, first or last (default: fail)
	Duplicates string `env:"COMPARE_DUPLICATES" default:"fail"`

	// Delimiter is the default field delimiter (default: ,)
	Delimiter string `env:"COMPARE_DELIMITER" default:","`

	// Encoding is the default source encoding (default: utf-8)
	Encoding string `env:"COMPARE_ENCODING" default:"utf-8"`

	// NullTokens are cell values loaded as empty; "pandas" expands to the
	// usual dataframe spellings (NA, NaN, null, ...). Comma-separated.
	NullTokens []string `env:"COMPARE_NULL_TOKENS"`

	// StripFormula unwraps Excel text formulas such as ="00123" (default: false)
	StripFormula bool `env:"COMPARE_STRIP_FORMULA" default:"false"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// CompareLimit is requests per minute for endpoints that read uploads (default: 10)
	CompareLimit int `env:"RATE_LIMIT_COMPARE" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
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
		return ":" + strconv.Itoa(c.Port)
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
