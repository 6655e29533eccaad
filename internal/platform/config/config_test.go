package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"CONFIG_FILE", "SERVICE_NAME", "HTTP_PORT", "STORE_DRIVER", "POSTGRES_DSN",
	"SQLITE_PATH", "KAFKA_BROKERS", "JWT_SECRET", "CATALOG_BASE_URL",
	"CATALOG_RATE_PER_SEC", "CATALOG_TIMEOUT", "STORAGE_TIMEOUT",
	"ENFORCE_SESSION_ITEMS", "OUTBOX_POLL_INTERVAL", "IDEMPOTENCY_TTL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.True(t, cfg.EnforceSessionItems)
	assert.Equal(t, 5*time.Second, cfg.StorageTimeout)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("ENFORCE_SESSION_ITEMS", "off")
	t.Setenv("STORAGE_TIMEOUT", "750ms")
	t.Setenv("CATALOG_RATE_PER_SEC", "2.5")
	t.Setenv("IDEMPOTENCY_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.EnforceSessionItems)
	assert.Equal(t, 750*time.Millisecond, cfg.StorageTimeout)
	assert.InDelta(t, 2.5, cfg.CatalogRatePerSec, 0.0001)
	assert.Equal(t, 7*24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoadFileOverlayThenEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "animevote.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service_name: animevote-staging
store_driver: postgres
postgres_dsn: postgres://file
enforce_session_items: false
catalog:
  base_url: https://catalog.internal
  timeout: 3s
outbox_poll_interval: 10s
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("POSTGRES_DSN", "postgres://env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "animevote-staging", cfg.ServiceName)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://env", cfg.PostgresDSN)
	assert.False(t, cfg.EnforceSessionItems)
	assert.Equal(t, "https://catalog.internal", cfg.CatalogBaseURL)
	assert.Equal(t, 3*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 10*time.Second, cfg.OutboxPollInterval)
}

func TestLoadRejectsBadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_timeout: soon\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage_timeout")

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.StoreDriver = StorePostgres
	require.Error(t, cfg.Validate())

	cfg.PostgresDSN = "postgres://localhost/animevote"
	require.NoError(t, cfg.Validate())

	cfg.StoreDriver = "mongo"
	require.Error(t, cfg.Validate())
}
