package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "das", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Equal(t, 5, cfg.Database.MaxIdle)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	// MQTT 默认关闭
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "er-alerts", cfg.MQTT.ClientID)

	assert.Equal(t, "er:events", cfg.Alert.EventStream)
	assert.Equal(t, "er-alerts", cfg.Alert.ConsumerGroup)
	assert.Equal(t, "er-alerts-1", cfg.Alert.ConsumerName)
	assert.Equal(t, int64(10), cfg.Alert.BatchSize)
	assert.Equal(t, "er:alerts:dispatch", cfg.Alert.DispatchStream)
	assert.Equal(t, "er/alerts", cfg.Alert.MQTTTopicPrefix)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_HOST", "db.internal")
	os.Setenv("DB_PORT", "15432")
	os.Setenv("DB_NAME", "das_test")
	os.Setenv("REDIS_ADDR", "redis.internal:6380")
	os.Setenv("MQTT_BROKER", "tcp://mqtt.internal:1883")
	os.Setenv("ALERT_EVENT_STREAM", "er:events:test")
	os.Setenv("ALERT_BATCH_SIZE", "50")
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 15432, cfg.Database.Port)
	assert.Equal(t, "das_test", cfg.Database.Database)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)

	// 配置了 broker 即视为启用 MQTT
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://mqtt.internal:1883", cfg.MQTT.Broker)

	assert.Equal(t, "er:events:test", cfg.Alert.EventStream)
	assert.Equal(t, int64(50), cfg.Alert.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_BadIntegerFallsBackToDefault(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PORT", "not-a-port")
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Database: "das",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=das sslmode=disable",
		cfg.GetDSN())
}
