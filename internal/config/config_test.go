package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/tmp/sa.json")

	_, err := Load()
	assert.EqualError(t, err, "TELEGRAM_BOT_TOKEN is required")
}

func TestLoad_RequiresCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := Load()
	assert.EqualError(t, err, "GOOGLE_SERVICE_ACCOUNT_FILE is required")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/tmp/sa.json")
	t.Setenv("WORKERS", "")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("EVENT_TIMEOUT", "")
	t.Setenv("QUEUE_PUBLISH_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Telegram.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Telegram.EventTimeout)
	assert.Equal(t, 5*time.Second, cfg.Telegram.PublishTimeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 60, cfg.Google.SheetsRequestsPerMin)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/tmp/sa.json")
	t.Setenv("WORKERS", "0")
	t.Setenv("EVENT_TIMEOUT", "30s")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("BQ_PROJECT", "my-project")
	t.Setenv("ADMIN_TOKEN", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Telegram.Workers)
	assert.Equal(t, 30*time.Second, cfg.Telegram.EventTimeout)
	assert.False(t, cfg.Server.MetricsEnabled)
	assert.Equal(t, "my-project", cfg.Journal.Project)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
}
