package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "mock")
	t.Setenv("PORT", "8000")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "mock", cfg.Model.Provider)
	assert.Equal(t, 3, cfg.Model.MaxRetries)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.True(t, cfg.Engine.SerializeSessions)
	assert.Equal(t, 4, cfg.Engine.SearchConcurrency)
	assert.Equal(t, 2, cfg.Delivery.Workers)
	assert.Equal(t, 64, cfg.Delivery.QueueSize)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
allowed_origins: [https://a.example, https://b.example]
model:
  provider: anthropic
  name: claude-sonnet
  anthropic_api_key: yaml-key
  fallbacks: [openai]
store:
  driver: sqlite
  db_path: /tmp/trip.db
delivery:
  workers: 3
  queue_size: 10
  job_timeout: 30s
`), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("DELIVERY_WORKERS", "5")
	t.Setenv("SERIALIZE_SESSIONS", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "claude-sonnet", cfg.Model.Name)
	assert.Equal(t, "env-key", cfg.Model.AnthropicKey)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/trip.db", cfg.Store.DBPath)
	assert.Equal(t, 5, cfg.Delivery.Workers)
	assert.Equal(t, 10, cfg.Delivery.QueueSize)
	assert.Equal(t, 30*time.Second, cfg.Delivery.JobTimeout)
	assert.False(t, cfg.Engine.SerializeSessions)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("STORE_DRIVER", "redis")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY is required")
	assert.Contains(t, err.Error(), `unknown STORE_DRIVER "redis"`)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unterminated"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config file")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TM_BOOL", "yes")
	t.Setenv("TM_BAD_BOOL", "maybe")
	t.Setenv("TM_INT", " 42 ")
	t.Setenv("TM_BAD_INT", "x")
	t.Setenv("TM_DURATION", "1m30s")
	t.Setenv("TM_LIST", "openai, ,gemini:gemini-2.0-flash")

	assert.True(t, getEnvBool("TM_BOOL", false))
	assert.True(t, getEnvBool("TM_BAD_BOOL", true))
	assert.Equal(t, 42, getEnvInt("TM_INT", 0))
	assert.Equal(t, 7, getEnvInt("TM_BAD_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvDuration("TM_DURATION", 0))
	assert.Equal(t, []string{"openai", "gemini:gemini-2.0-flash"}, getEnvList("TM_LIST", nil))
	assert.Equal(t, "fallback", getEnv("TM_UNSET_KEY", "fallback"))
}

func TestEnabled(t *testing.T) {
	assert.False(t, NaverConfig{ClientID: "id"}.Enabled())
	assert.True(t, NaverConfig{ClientID: "id", ClientSecret: "secret"}.Enabled())
	assert.False(t, SMTPConfig{}.Enabled())
	assert.True(t, GoogleConfig{CredentialsJSON: "{}"}.Enabled())
}
