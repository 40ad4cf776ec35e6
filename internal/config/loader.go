package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables, applying the tag
// defaults for anything unset, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := fromEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// fromEnv walks the struct and fills each tagged field from its environment
// variable, falling back to the default tag. Nested structs are walked
// recursively so section types stay plain.
func fromEnv(v reflect.Value) error {
	t := v.Type()

	for i := range t.NumField() {
		f := t.Field(i)
		fv := v.Field(i)

		if !fv.CanSet() {
			continue
		}
		if f.Type.Kind() == reflect.Struct {
			if err := fromEnv(fv); err != nil {
				return err
			}
			continue
		}

		key, ok := f.Tag.Lookup("env")
		if !ok {
			continue
		}

		raw := os.Getenv(key)
		if raw == "" {
			if f.Tag.Get("required") == "true" {
				return fmt.Errorf("missing required environment variable %s", key)
			}
			raw = f.Tag.Get("default")
			if raw == "" {
				continue
			}
		}

		if err := assign(fv, raw); err != nil {
			return fmt.Errorf("parse %s=%q: %w", key, raw, err)
		}
	}

	return nil
}

// assign parses raw into the field according to its Go type.
func assign(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
		return nil
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
		return nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
		return nil
	default:
		return fmt.Errorf("unsupported config field kind %s", field.Kind())
	}
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string
	errs = append(errs, c.Server.validate()...)
	errs = append(errs, c.Database.validate()...)
	errs = append(errs, c.Uploads.validate()...)
	errs = append(errs, c.Rate.validate()...)
	errs = append(errs, c.Logging.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *ServerConfig) validate() []string {
	var errs []string
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) is outside 1-65535", c.Port))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	return errs
}

func (c *DatabaseConfig) validate() []string {
	var errs []string
	if c.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must not be negative")
	}
	if c.MinConns > c.MaxConns {
		errs = append(errs, fmt.Sprintf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.MinConns, c.MaxConns))
	}
	return errs
}

func (c *UploadConfig) validate() []string {
	var errs []string
	if c.Dir == "" {
		errs = append(errs, "UPLOAD_DIR must not be empty")
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.RetentionDays <= 0 {
		errs = append(errs, "UPLOAD_RETENTION_DAYS must be positive")
	}
	return errs
}

func (c *RateLimitConfig) validate() []string {
	if c.Enabled && c.RequestsPerMinute <= 0 {
		return []string{"RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled"}
	}
	return nil
}

func (c *LoggingConfig) validate() []string {
	var errs []string
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of debug, info, warn, error", c.Level))
	}
	switch strings.ToLower(c.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be text or json", c.Format))
	}
	return errs
}

// String renders the config for startup logging with credentials masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, Database: {Host: %q, Name: %q, User: %q, Password: [MASKED], MaxConns: %d}, "+
			"Uploads: {Dir: %q, MaxFileSize: %d, RetentionDays: %d}, "+
			"Rate: {Enabled: %v, RequestsPerMinute: %d}, Logging: {Level: %q, Format: %q}}",
		c.Server.Addr(), c.Database.Host, c.Database.Name, c.Database.User, c.Database.MaxConns,
		c.Uploads.Dir, c.Uploads.MaxFileSize, c.Uploads.RetentionDays,
		c.Rate.Enabled, c.Rate.RequestsPerMinute,
		c.Logging.Level, c.Logging.Format,
	)
}
