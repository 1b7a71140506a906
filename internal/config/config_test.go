package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"HTTP_ADDR", "OPS_ADDR", "STORE_BACKEND", "DB_URL", "RUN_MIGRATIONS",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "EVENTS_BACKEND", "KAFKA_BROKERS",
	"MOVEMENTS_TOPIC", "STREAM_MAX_LEN", "PUBLISH_TIMEOUT", "WORKER_COUNT",
	"WORKER_QUEUE_SIZE", "WORKER_MAX_RETRIES", "SHUTDOWN_TIMEOUT",
}

// clearEnv unsets every key FromEnv reads and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.OpsAddr)
	assert.Equal(t, StoreBackendPostgres, cfg.StoreBackend)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, EventsBackendLog, cfg.EventsBackend)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "movements", cfg.MovementsTopic)
	assert.Equal(t, int64(10000), cfg.StreamMaxLen)
	assert.Equal(t, 5*time.Second, cfg.PublishTimeout)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 100, cfg.WorkerQueueSize)
	assert.Equal(t, 3, cfg.WorkerRetries)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.RedisAddr)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("EVENTS_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("PUBLISH_TIMEOUT", "250ms")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.Equal(t, EventsBackendKafka, cfg.EventsBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 250*time.Millisecond, cfg.PublishTimeout)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown store", map[string]string{"STORE_BACKEND": "mongo"}, "STORE_BACKEND"},
		{"unknown events backend", map[string]string{"EVENTS_BACKEND": "nats"}, "EVENTS_BACKEND"},
		{"kafka without brokers", map[string]string{"EVENTS_BACKEND": "kafka", "KAFKA_BROKERS": " , "}, "KAFKA_BROKERS"},
		{"redis stream without address", map[string]string{"EVENTS_BACKEND": "redis"}, "REDIS_ADDR"},
		{"non numeric worker count", map[string]string{"WORKER_COUNT": "many"}, "WORKER_COUNT"},
		{"zero workers", map[string]string{"WORKER_COUNT": "0"}, "WORKER_COUNT"},
		{"zero queue", map[string]string{"WORKER_QUEUE_SIZE": "0"}, "WORKER_QUEUE_SIZE"},
		{"bad bool", map[string]string{"RUN_MIGRATIONS": "sometimes"}, "RUN_MIGRATIONS"},
		{"bad duration", map[string]string{"SHUTDOWN_TIMEOUT": "10"}, "SHUTDOWN_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := FromEnv()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
