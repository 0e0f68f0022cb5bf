package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgresql://localhost/balancebook")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, time.Second, cfg.LockWait)
	assert.Equal(t, 15*time.Second, cfg.LockLease)
}

func TestLoadRequiresDBSource(t *testing.T) {
	t.Setenv("DB_SOURCE", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgresql://localhost/balancebook")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOCK_WAIT_TIMEOUT", "500ms")
	t.Setenv("LOCK_LEASE_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.LockWait)
	assert.Equal(t, 30*time.Second, cfg.LockLease)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgresql://localhost/balancebook")
	t.Setenv("LOCK_WAIT_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}
