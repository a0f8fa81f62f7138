package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the console.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8090"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	UpstreamBaseURL string        `envconfig:"UPSTREAM_BASE_URL" default:"http://localhost:8080"`
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`

	DirectoryRole     string   `envconfig:"DIRECTORY_ROLE" default:"user"`
	DirectoryPageSize int      `envconfig:"DIRECTORY_PAGE_SIZE" default:"10"`
	AdminRoles        []string `envconfig:"ADMIN_ROLES" default:"admin"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	PGDSN        string `envconfig:"PG_DSN"`
	AuditEnabled bool   `envconfig:"AUDIT_ENABLED" default:"true"`

	// AuditRetention bounds how long audit entries are kept; zero keeps them forever.
	AuditRetention time.Duration `envconfig:"AUDIT_RETENTION" default:"2160h"`
}

// LoadConfig reads configuration from an optional .env file and the environment.
// Variables already set in the environment win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SessionSecret == "" {
		return errors.New("session secret must be provided")
	}
	if c.CSRFSecret == "" {
		return errors.New("csrf secret must be provided")
	}
	if c.DirectoryPageSize <= 0 {
		return errors.New("directory page size must be positive")
	}
	if strings.TrimSpace(c.UpstreamBaseURL) == "" {
		return errors.New("upstream base url must be provided")
	}
	roles := c.AdminRoles[:0]
	for _, role := range c.AdminRoles {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return errors.New("at least one admin role must be provided")
	}
	c.AdminRoles = roles
	if c.AuditRetention < 0 {
		return errors.New("audit retention must not be negative")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// AuditConfigured reports whether audit events should be recorded.
func (c *Config) AuditConfigured() bool {
	return c != nil && c.AuditEnabled && c.PGDSN != ""
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if c == nil || level.UnmarshalText([]byte(c.LogLevel)) != nil {
		return slog.LevelInfo
	}
	return level
}
