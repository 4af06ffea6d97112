package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "HOST", "CORS_ALLOW_ORIGINS", "JWT_SECRET",
	"WA_STORE_DIALECT", "WA_STORE_DSN", "WA_DEVICE_NAME",
	"RECONNECT_DELAY", "RECONNECT_MAX_ATTEMPTS",
	"LOG_LEVEL", "LOG_PRETTY", "WA_LOG_LEVEL",
}

// unsetEnv clears keys for the test and restores them afterwards.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, ":3000", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
	assert.Empty(t, cfg.Server.JWTSecret)
	assert.Equal(t, "sqlite", cfg.Store.Dialect)
	assert.Contains(t, cfg.Store.DSN, "foreign_keys(1)")
	assert.Equal(t, 5*time.Second, cfg.Reconnect.Delay)
	assert.Zero(t, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	unsetEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("WA_STORE_DIALECT", "postgres")
	t.Setenv("WA_STORE_DSN", "postgres://wa:wa@localhost:5432/wa?sslmode=disable")
	t.Setenv("RECONNECT_DELAY", "750ms")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "3")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, "postgres", cfg.Store.Dialect)
	assert.Equal(t, 750*time.Millisecond, cfg.Reconnect.Delay)
	assert.Equal(t, 3, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"dialect":      {"WA_STORE_DIALECT": "mysql"},
		"zero delay":   {"RECONNECT_DELAY": "0s"},
		"neg attempts": {"RECONNECT_MAX_ATTEMPTS": "-1"},
		"bad duration": {"RECONNECT_DELAY": "soon"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			unsetEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
