// Package config provides centralized configuration management for the
// import service. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"fmt"
	"time"
)

// Config collects every setting the service reads at startup. Each field
// maps to one environment variable.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Uploads  UploadConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
	Sheets   SheetsConfig
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	// Host is the interface the listener binds (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the listen port (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing the response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout bounds how long keep-alive connections stay open (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout caps the graceful shutdown wait (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is applied per request by the router (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// Addr formats the listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// Host is the database host (default: 127.0.0.1)
	Host string `env:"DB_HOST" default:"127.0.0.1"`

	// Port is the database port (default: 5432)
	Port string `env:"DB_PORT" default:"5432"`

	// User is the database username (required)
	User string `env:"DB_USER" required:"true"`

	// Password is the database password (required)
	Password string `env:"DB_PASSWORD" required:"true"`

	// Name is the database name (required)
	Name string `env:"DB_NAME" required:"true"`

	// SSLMode is the sslmode connection parameter (default: disable)
	SSLMode string `env:"DB_SSLMODE" default:"disable"`

	// MaxConns caps the connection pool size (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`
}

// UploadConfig holds file staging settings.
type UploadConfig struct {
	// Dir is the staging directory for uploaded files (default: ./uploads)
	Dir string `env:"UPLOAD_DIR" default:"./uploads"`

	// MaxFileSize is the maximum allowed upload size in bytes (default: 16MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"16777216"`

	// RetentionDays is how long staged files are kept before cleanup (default: 7)
	RetentionDays int `env:"UPLOAD_RETENTION_DAYS" default:"7"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// Enabled switches per-IP rate limiting on or off (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the per-IP budget for general endpoints (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is the per-IP budget for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	// Level sets the minimum severity: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format selects the handler, text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// SheetsConfig holds Google Sheets sync settings.
type SheetsConfig struct {
	// SyncTimeout is the maximum duration for one sheet pull (default: 2m)
	SyncTimeout time.Duration `env:"SHEETS_SYNC_TIMEOUT" default:"2m"`
}
