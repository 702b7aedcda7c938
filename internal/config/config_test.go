package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FMP_API_KEY", "test-key")
	t.Setenv("FUNDSYNC_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.FMPAPIKey)
	assert.False(t, cfg.StrictSync)
	assert.Equal(t, 30, cfg.RequiredYears)
	assert.Equal(t, 3*time.Second, cfg.SyncDelay)
	assert.Equal(t, 250, cfg.RatePerMinute)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Contains(t, cfg.DatabasePath(), "fundsync.db")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FMP_API_KEY", "test-key")
	t.Setenv("FUNDSYNC_DATA_DIR", t.TempDir())
	t.Setenv("STRICT_SYNC", "true")
	t.Setenv("REQUIRED_YEARS", "10")
	t.Setenv("SYNC_DELAY_MS", "500")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.StrictSync)
	assert.Equal(t, 10, cfg.RequiredYears)
	assert.Equal(t, 500*time.Millisecond, cfg.SyncDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("FMP_API_KEY", "")
	t.Setenv("FUNDSYNC_DATA_DIR", t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FMP_API_KEY")
}

func TestLoad_RequiredYearsAboveHorizonRejected(t *testing.T) {
	t.Setenv("FMP_API_KEY", "test-key")
	t.Setenv("FUNDSYNC_DATA_DIR", t.TempDir())
	t.Setenv("REQUIRED_YEARS", "31")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUIRED_YEARS")
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("FMP_API_KEY", "test-key")
	t.Setenv("FUNDSYNC_DATA_DIR", t.TempDir())
	t.Setenv("REQUIRED_YEARS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.RequiredYears)
}
