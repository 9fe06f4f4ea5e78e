// Package config centralizes how soupcal reads its settings: an optional
// YAML file named by SOUPCAL_CONFIG, then environment variables on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dharsanguruparan/soupcal/internal/secret"
)

// Config represents runtime configuration for every soupcal binary.
type Config struct {
	Address     string `yaml:"address"`
	DatabaseURL string `yaml:"database_url"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	S3Endpoint      string `yaml:"s3_endpoint"`
	S3AccessKey     string `yaml:"s3_access_key"`
	S3SecretKey     string `yaml:"s3_secret_key"`
	S3UseSSL        bool   `yaml:"s3_use_ssl"`
	S3Region        string `yaml:"s3_region"`
	RawBucket       string `yaml:"raw_bucket"`
	ProcessedBucket string `yaml:"processed_bucket"`

	// EncryptionKey is the base64 encoded key that seals Slack tokens.
	EncryptionKey string `yaml:"encryption_key"`

	SlackClientID      string `yaml:"slack_client_id"`
	SlackClientSecret  string `yaml:"slack_client_secret"`
	SlackRedirectURI   string `yaml:"slack_redirect_uri"`
	SlackSigningSecret string `yaml:"slack_signing_secret"`
	SlackUsername      string `yaml:"slack_username"`
	SlackIconEmoji     string `yaml:"slack_icon_emoji"`

	AlertWebhookURL string   `yaml:"alert_webhook_url"`
	SMTPHost        string   `yaml:"smtp_host"`
	SMTPPort        int      `yaml:"smtp_port"`
	SMTPUsername    string   `yaml:"smtp_username"`
	SMTPPassword    string   `yaml:"smtp_password"`
	SMTPFrom        string   `yaml:"smtp_from"`
	SMTPTo          []string `yaml:"smtp_to"`

	DefaultTimezone string        `yaml:"default_timezone"`
	NotifyInterval  time.Duration `yaml:"notify_interval"`
	NotifySchedule  string        `yaml:"notify_schedule"`
	ImportSchedule  string        `yaml:"import_schedule"`
	ImportURL       string        `yaml:"import_url"`
	ImportKind      string        `yaml:"import_kind"`
	HTMLTag         string        `yaml:"html_tag"`
	HTMLClasses     []string      `yaml:"html_classes"`

	WorkerConcurrency int    `yaml:"worker_concurrency"`
	NotifyConcurrency int    `yaml:"notify_concurrency"`
	LogLevel          string `yaml:"log_level"`
}

const (
	defaultAddress           = ":8080"
	defaultRedisAddr         = "localhost:6379"
	defaultS3Endpoint        = "localhost:9000"
	defaultS3Region          = "us-east-1"
	defaultRawBucket         = "soupcal-sources"
	defaultProcessedBucket   = "soupcal-calendars"
	defaultTimezone          = "America/New_York"
	defaultNotifyInterval    = 15 * time.Minute
	defaultNotifySchedule    = "*/15 * * * *"
	defaultImportSchedule    = "0 0 * * 0"
	defaultImportKind        = "pdf"
	defaultHTMLTag           = "main"
	defaultHTMLClasses       = "sqs-block-content"
	defaultSlackUsername     = "Subito-Suboto"
	defaultSlackIconEmoji    = ":stew:"
	defaultSMTPPort          = 587
	defaultWorkerConcurrency = 4
	defaultNotifyConcurrency = 8
	defaultLogLevel          = "info"
)

func defaults() *Config {
	return &Config{
		Address:           defaultAddress,
		RedisAddr:         defaultRedisAddr,
		S3Endpoint:        defaultS3Endpoint,
		S3Region:          defaultS3Region,
		RawBucket:         defaultRawBucket,
		ProcessedBucket:   defaultProcessedBucket,
		SlackUsername:     defaultSlackUsername,
		SlackIconEmoji:    defaultSlackIconEmoji,
		SMTPPort:          defaultSMTPPort,
		DefaultTimezone:   defaultTimezone,
		NotifyInterval:    defaultNotifyInterval,
		NotifySchedule:    defaultNotifySchedule,
		ImportSchedule:    defaultImportSchedule,
		ImportKind:        defaultImportKind,
		HTMLTag:           defaultHTMLTag,
		HTMLClasses:       strings.Fields(defaultHTMLClasses),
		WorkerConcurrency: defaultWorkerConcurrency,
		NotifyConcurrency: defaultNotifyConcurrency,
		LogLevel:          defaultLogLevel,
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, in that order of precedence (environment wins).
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("SOUPCAL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Address = readEnv("SOUPCAL_ADDRESS", cfg.Address)
	cfg.DatabaseURL = readEnv("SOUPCAL_DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = readEnv("SOUPCAL_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = readEnv("SOUPCAL_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = parseInt("SOUPCAL_REDIS_DB", cfg.RedisDB)

	cfg.S3Endpoint = readEnv("SOUPCAL_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3AccessKey = readEnv("SOUPCAL_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = readEnv("SOUPCAL_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UseSSL = parseBool("SOUPCAL_S3_USE_SSL", cfg.S3UseSSL)
	cfg.S3Region = readEnv("SOUPCAL_S3_REGION", cfg.S3Region)
	cfg.RawBucket = readEnv("SOUPCAL_RAW_BUCKET", cfg.RawBucket)
	cfg.ProcessedBucket = readEnv("SOUPCAL_PROCESSED_BUCKET", cfg.ProcessedBucket)

	cfg.EncryptionKey = readEnv("SOUPCAL_ENCRYPTION_KEY", cfg.EncryptionKey)

	cfg.SlackClientID = readEnv("SOUPCAL_SLACK_CLIENT_ID", cfg.SlackClientID)
	cfg.SlackClientSecret = readEnv("SOUPCAL_SLACK_CLIENT_SECRET", cfg.SlackClientSecret)
	cfg.SlackRedirectURI = readEnv("SOUPCAL_SLACK_REDIRECT_URI", cfg.SlackRedirectURI)
	cfg.SlackSigningSecret = readEnv("SOUPCAL_SLACK_SIGNING_SECRET", cfg.SlackSigningSecret)
	cfg.SlackUsername = readEnv("SOUPCAL_SLACK_USERNAME", cfg.SlackUsername)
	cfg.SlackIconEmoji = readEnv("SOUPCAL_SLACK_ICON_EMOJI", cfg.SlackIconEmoji)

	cfg.AlertWebhookURL = readEnv("SOUPCAL_ALERT_WEBHOOK_URL", cfg.AlertWebhookURL)
	cfg.SMTPHost = readEnv("SOUPCAL_SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = parseInt("SOUPCAL_SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPUsername = readEnv("SOUPCAL_SMTP_USERNAME", cfg.SMTPUsername)
	cfg.SMTPPassword = readEnv("SOUPCAL_SMTP_PASSWORD", cfg.SMTPPassword)
	cfg.SMTPFrom = readEnv("SOUPCAL_SMTP_FROM", cfg.SMTPFrom)
	cfg.SMTPTo = parseList("SOUPCAL_SMTP_TO", ",", cfg.SMTPTo)

	cfg.DefaultTimezone = readEnv("SOUPCAL_DEFAULT_TIMEZONE", cfg.DefaultTimezone)
	cfg.NotifyInterval = parseDuration("SOUPCAL_NOTIFY_INTERVAL", cfg.NotifyInterval)
	cfg.NotifySchedule = readEnv("SOUPCAL_NOTIFY_SCHEDULE", cfg.NotifySchedule)
	cfg.ImportSchedule = readEnv("SOUPCAL_IMPORT_SCHEDULE", cfg.ImportSchedule)
	cfg.ImportURL = readEnv("SOUPCAL_IMPORT_URL", cfg.ImportURL)
	cfg.ImportKind = readEnv("SOUPCAL_IMPORT_KIND", cfg.ImportKind)
	cfg.HTMLTag = readEnv("SOUPCAL_HTML_TAG", cfg.HTMLTag)
	cfg.HTMLClasses = parseList("SOUPCAL_HTML_CLASSES", " ", cfg.HTMLClasses)

	cfg.WorkerConcurrency = parseInt("SOUPCAL_WORKERS", cfg.WorkerConcurrency)
	cfg.NotifyConcurrency = parseInt("SOUPCAL_NOTIFY_CONCURRENCY", cfg.NotifyConcurrency)
	cfg.LogLevel = readEnv("SOUPCAL_LOG_LEVEL", cfg.LogLevel)

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = defaultWorkerConcurrency
	}
	if cfg.NotifyConcurrency <= 0 {
		cfg.NotifyConcurrency = defaultNotifyConcurrency
	}
	if cfg.NotifyInterval <= 0 {
		cfg.NotifyInterval = defaultNotifyInterval
	}
	return cfg, nil
}

// Validate reports settings every binary needs before it can start. A
// missing or malformed encryption key is fatal: stored Slack tokens could
// not be read.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("SOUPCAL_DATABASE_URL is required"))
	}
	if c.EncryptionKey == "" {
		errs = append(errs, errors.New("SOUPCAL_ENCRYPTION_KEY is required"))
	} else if _, err := secret.ParseKey(c.EncryptionKey); err != nil {
		errs = append(errs, fmt.Errorf("SOUPCAL_ENCRYPTION_KEY: %w", err))
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("SOUPCAL_DEFAULT_TIMEZONE: %w", err))
	}
	switch c.ImportKind {
	case "pdf", "html":
	default:
		errs = append(errs, fmt.Errorf("SOUPCAL_IMPORT_KIND must be pdf or html, got %q", c.ImportKind))
	}
	return errors.Join(errs...)
}

// Location returns the default timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key, sep string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "15m" or "30s".
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
