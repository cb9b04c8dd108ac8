package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "STORAGE", "MONGO_URI", "MONGO_DB",
		"KAFKA_BROKERS", "KAFKA_TOPIC_PREFIX", "KAFKA_GROUP_ID", "OUTBOX_POLL_INTERVAL",
		"RETRY_BACKOFF", "IDEMP_TTL", "LOCK_BACKEND", "REDIS_ADDR", "REDIS_PASSWORD",
		"REDIS_DB", "LOCK_TTL", "LOCK_WAIT", "S3_ENDPOINT", "S3_PUBLIC_ENDPOINT",
		"S3_USE_SSL", "SESSION_TTL", "PROPERTY_FIXTURES", "ADMIN_EMAILS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, LockMemory, cfg.LockBackend)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.S3Enabled())
}

func TestLoadParsesLists(t *testing.T) {
	clearEnv(t)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RETRY_BACKOFF", "2s,10s")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ADMIN_EMAILS", "Root@Example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []time.Duration{2 * time.Second, 10 * time.Second}, cfg.RetryBackoff)
	assert.Equal(t, "http://minio:9000", cfg.S3PublicEndpoint)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, []string{"root@example.com"}, cfg.AdminEmails)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "mongo without uri", env: map[string]string{"STORAGE": "mongo"}},
		{name: "redis without addr", env: map[string]string{"LOCK_BACKEND": "redis"}},
		{name: "unknown storage", env: map[string]string{"STORAGE": "sqlite"}},
		{name: "bad duration", env: map[string]string{"LOCK_WAIT": "soon"}},
		{name: "bad bool", env: map[string]string{"S3_USE_SSL": "maybe"}},
		{name: "bad backoff", env: map[string]string{"RETRY_BACKOFF": "1s,x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:9999\nMONGO_DB=fromfile\n"), 0o600))
	t.Setenv("MONGO_DB", "fromenv")
	// godotenv only fills variables that are absent, not merely empty.
	require.NoError(t, os.Unsetenv("HTTP_ADDR"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "fromenv", cfg.MongoDB)
}
