package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SOUPCAL_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Address != defaultAddress || cfg.NotifyInterval != 15*time.Minute {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.NotifySchedule != "*/15 * * * *" {
		t.Fatalf("notify schedule = %q", cfg.NotifySchedule)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "soupcal.yaml")
	yamlDoc := `
address: ":9090"
database_url: postgres://yaml
notify_interval: 10m
html_classes: [day, card]
smtp_to: [ops@example.com]
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SOUPCAL_CONFIG", path)
	t.Setenv("SOUPCAL_DATABASE_URL", "postgres://env")
	t.Setenv("SOUPCAL_WORKERS", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Address != ":9090" {
		t.Fatalf("address = %q, want yaml value", cfg.Address)
	}
	if cfg.DatabaseURL != "postgres://env" {
		t.Fatalf("database url = %q, want env override", cfg.DatabaseURL)
	}
	if cfg.NotifyInterval != 10*time.Minute {
		t.Fatalf("notify interval = %v", cfg.NotifyInterval)
	}
	if strings.Join(cfg.HTMLClasses, " ") != "day card" || len(cfg.SMTPTo) != 1 {
		t.Fatalf("lists = %v %v", cfg.HTMLClasses, cfg.SMTPTo)
	}
	if cfg.WorkerConcurrency != defaultWorkerConcurrency {
		t.Fatalf("negative worker count should fall back to default, got %d", cfg.WorkerConcurrency)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("SOUPCAL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing key", mutate: func(c *Config) { c.EncryptionKey = "" }, wantErr: "SOUPCAL_ENCRYPTION_KEY is required"},
		{name: "short key", mutate: func(c *Config) { c.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short")) }, wantErr: "SOUPCAL_ENCRYPTION_KEY"},
		{name: "missing database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "SOUPCAL_DATABASE_URL"},
		{name: "bad kind", mutate: func(c *Config) { c.ImportKind = "docx" }, wantErr: "SOUPCAL_IMPORT_KIND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			cfg.DefaultTimezone = "UTC"
			cfg.DatabaseURL = "postgres://localhost/soupcal"
			cfg.EncryptionKey = key
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
