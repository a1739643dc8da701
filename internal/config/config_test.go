package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{
		"TAPBOX_HTTP_ADDR", "TAPBOX_GRPC_ADDR", "TAPBOX_ENV", "TAPBOX_STORE",
		"TAPBOX_DATA_DIR", "TAPBOX_DB_PATH", "TAPBOX_READER_DEVICE",
		"TAPBOX_POLL_TIMEOUT_MS", "TAPBOX_READER_RETRIES", "TAPBOX_LOG_LEVEL",
		"TAPBOX_LOG_FILE", "TAPBOX_LOG_WARN_BYTES", "TAPBOX_FLASH_BYTES",
		"TAPBOX_BATTERY_VOLTS", "TAPBOX_LED_COUNT",
	} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, ":9090", c.GRPCAddr)
	assert.Equal(t, "dev", c.Env)
	assert.Equal(t, "dir", c.Store)
	assert.Equal(t, "./data/tapbox.db", c.DBPath)
	assert.Equal(t, "-", c.ReaderDevice)
	assert.Equal(t, 100*time.Millisecond, c.PollTimeout)
	assert.Equal(t, 5, c.ReaderRetries)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, int64(1<<20), c.LogWarnBytes)
	assert.Equal(t, 4.2, c.BatteryVolts)
	assert.Equal(t, 8, c.LEDCount)
}

func TestFromEnvFailSoft(t *testing.T) {
	t.Setenv("TAPBOX_ENV", "staging")
	t.Setenv("TAPBOX_STORE", "s3")
	t.Setenv("TAPBOX_POLL_TIMEOUT_MS", "abc")
	t.Setenv("TAPBOX_READER_RETRIES", "-2")
	t.Setenv("TAPBOX_BATTERY_VOLTS", "x")
	t.Setenv("TAPBOX_LED_COUNT", "0")

	c := FromEnv()
	assert.Equal(t, "dev", c.Env)
	assert.Equal(t, "dir", c.Store)
	assert.Equal(t, 100*time.Millisecond, c.PollTimeout)
	assert.Equal(t, 5, c.ReaderRetries)
	assert.Equal(t, 4.2, c.BatteryVolts)
	assert.Equal(t, 1, c.LEDCount)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TAPBOX_STORE", "SQLite")
	t.Setenv("TAPBOX_DATA_DIR", "/flash")
	t.Setenv("TAPBOX_DB_PATH", "")
	t.Setenv("TAPBOX_GRPC_ADDR", "127.0.0.1:7000")
	t.Setenv("TAPBOX_LOG_LEVEL", "DEBUG")

	c := FromEnv()
	assert.Equal(t, "sqlite", c.Store)
	assert.Equal(t, "/flash/tapbox.db", c.DBPath)
	assert.Equal(t, "127.0.0.1:7000", c.GRPCAddr)
	assert.Equal(t, "debug", c.LogLevel)
}
