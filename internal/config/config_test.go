package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "importd")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "mobidash")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Database.SSLMode != "disable" {
		t.Errorf("Database.SSLMode = %q, want %q", cfg.Database.SSLMode, "disable")
	}
	if cfg.Uploads.MaxFileSize != 16777216 {
		t.Errorf("Uploads.MaxFileSize = %d, want %d", cfg.Uploads.MaxFileSize, 16777216)
	}
	if cfg.Uploads.RetentionDays != 7 {
		t.Errorf("Uploads.RetentionDays = %d, want %d", cfg.Uploads.RetentionDays, 7)
	}
	if cfg.Rate.RequestsPerMinute != 100 {
		t.Errorf("Rate.RequestsPerMinute = %d, want %d", cfg.Rate.RequestsPerMinute, 100)
	}
	if cfg.Sheets.SyncTimeout != 2*time.Minute {
		t.Errorf("Sheets.SyncTimeout = %v, want %v", cfg.Sheets.SyncTimeout, 2*time.Minute)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("UPLOAD_MAX_FILE_SIZE", "1048576")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Uploads.MaxFileSize != 1048576 {
		t.Errorf("Uploads.MaxFileSize = %d, want %d", cfg.Uploads.MaxFileSize, 1048576)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DB_USER", "importd")
	t.Setenv("DB_PASSWORD", "secret")
	// DB_NAME deliberately unset

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing DB_NAME")
	}
	if !strings.Contains(err.Error(), "DB_NAME") {
		t.Errorf("error %q does not mention DB_NAME", err)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for invalid SERVER_PORT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "SERVER_PORT",
		},
		{
			name:    "max conns below min",
			mutate:  func(c *Config) { c.Database.MaxConns = 1; c.Database.MinConns = 5 },
			wantErr: "DB_MAX_CONNS",
		},
		{
			name:    "zero file size",
			mutate:  func(c *Config) { c.Uploads.MaxFileSize = 0 },
			wantErr: "UPLOAD_MAX_FILE_SIZE",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "rate limit enabled without budget",
			mutate:  func(c *Config) { c.Rate.Enabled = true; c.Rate.RequestsPerMinute = 0 },
			wantErr: "RATE_LIMIT_REQUESTS_PER_MINUTE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			tt.mutate(cfg)

			err = cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigString_MasksCredentials(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	s := cfg.String()
	if strings.Contains(s, "secret") {
		t.Errorf("String() leaked the database password: %s", s)
	}
	if !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() missing mask marker: %s", s)
	}
}
