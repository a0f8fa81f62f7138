package app

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("CSRF_SECRET", "csrf")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("UPSTREAM_BASE_URL", "http://users.internal:8080")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.AppAddr)
	assert.Equal(t, "http://users.internal:8080", cfg.UpstreamBaseURL)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, "user", cfg.DirectoryRole)
	assert.Equal(t, 10, cfg.DirectoryPageSize)
	assert.Equal(t, []string{"admin"}, cfg.AdminRoles)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 90*24*time.Hour, cfg.AuditRetention)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.AuditConfigured())
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_ROLES", "admin, super_admin ,")
	t.Setenv("DIRECTORY_PAGE_SIZE", "25")
	t.Setenv("PG_DSN", "postgres://localhost/audit")
	t.Setenv("APP_ENV", "production")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"admin", "super_admin"}, cfg.AdminRoles)
	assert.Equal(t, 25, cfg.DirectoryPageSize)
	assert.True(t, cfg.AuditConfigured())
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("missing secrets", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "")
		t.Setenv("CSRF_SECRET", "")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("non positive page size", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DIRECTORY_PAGE_SIZE", "0")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "page size")
	})
}

func TestLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Equal(t, slog.LevelInfo, (*Config)(nil).Level())
}
