package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NETLAYER_OPERATOR_BASEURL", "https://api.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Operator.BaseURL)
	assert.Equal(t, "default.http.operator.queue", cfg.Operator.Queue)
	assert.Equal(t, 3, cfg.Operator.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Operator.Backoff)
	assert.Equal(t, "Bearer", cfg.Operator.Auth.Scheme)
	assert.Equal(t, "POST", cfg.Operator.Auth.Refresh.Method)
	assert.Equal(t, "token", cfg.Operator.Auth.Refresh.Field)
	assert.Empty(t, cfg.Operator.Auth.Refresh.Path)

	assert.Equal(t, 30*time.Second, cfg.Transport.Timeout)
	assert.False(t, cfg.Transport.LogPayloads)
	assert.Equal(t, 1024, cfg.Transport.MaxPayloadLogBytes)
	assert.Equal(t, "X-Request-ID", cfg.Transport.TraceIDHeader)
	assert.Zero(t, cfg.Transport.RateLimit.Limit)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)

	assert.False(t, cfg.Observability.Enabled)
	assert.Equal(t, "netlayer", cfg.Observability.Service.Name)
	assert.Equal(t, "stdout", cfg.Observability.Endpoint)
	assert.Equal(t, "http", cfg.Observability.Protocol)
	assert.InDelta(t, 1.0, cfg.Observability.SampleRate, 0.0001)
	assert.Equal(t, 15*time.Second, cfg.Observability.Interval)
}

func TestLoadWithoutBaseURLFails(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "operator.baseurl")
	assert.Contains(t, err.Error(), "NETLAYER_OPERATOR_BASEURL")
}

func TestLoadReadsDefaultFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := []byte("operator:\n  baseurl: http://localhost:9000\n  maxattempts: 5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), doc, 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.Operator.BaseURL)
	assert.Equal(t, 5, cfg.Operator.MaxAttempts)
}

func TestLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	doc := []byte(`
operator:
  baseurl: https://api.example.com/v1
  backoff: 250ms
  auth:
    refresh:
      path: /auth/refresh
transport:
  timeout: 5s
  logpayloads: true
  ratelimit:
    limit: 20
    burst: 4
log:
  level: debug
  pretty: true
`)
	require.NoError(t, os.WriteFile(path, doc, 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Operator.Backoff)
	assert.Equal(t, "/auth/refresh", cfg.Operator.Auth.Refresh.Path)
	assert.Equal(t, 5*time.Second, cfg.Transport.Timeout)
	assert.True(t, cfg.Transport.LogPayloads)
	assert.InDelta(t, 20.0, cfg.Transport.RateLimit.Limit, 0.0001)
	assert.Equal(t, 4, cfg.Transport.RateLimit.Burst)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	t.Setenv("NETLAYER_OPERATOR_MAXATTEMPTS", "2")
	t.Setenv("NETLAYER_TRANSPORT_RATELIMIT_BURST", "7")
	t.Setenv("NETLAYER_LOG_LEVEL", "warn")

	cfg, err := LoadBytes([]byte("operator:\n  baseurl: https://api.example.com\n  maxattempts: 6\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Operator.MaxAttempts)
	assert.Equal(t, 7, cfg.Transport.RateLimit.Burst)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "2", cfg.String("operator.maxattempts"))
}

func TestLoadBytesInvalidYAML(t *testing.T) {
	_, err := LoadBytes([]byte("operator: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse yaml")
}

func TestConfigRawAccess(t *testing.T) {
	cfg, err := LoadBytes([]byte("operator:\n  baseurl: https://api.example.com\ncustom:\n  region: eu-west\n"))
	require.NoError(t, err)

	assert.Equal(t, "eu-west", cfg.String("custom.region"))
	assert.True(t, cfg.Exists("custom.region"))
	assert.False(t, cfg.Exists("custom.missing"))

	var empty *Config
	assert.Empty(t, empty.String("operator.baseurl"))
	assert.False(t, empty.Exists("operator.baseurl"))
}
