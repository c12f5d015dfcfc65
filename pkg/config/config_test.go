package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 7.0, cfg.Ledger.AverageThreshold)
	assert.Equal(t, 8, cfg.Ledger.BatchConcurrency)
	assert.Equal(t, "America/Sao_Paulo", cfg.Ledger.Timezone)
	assert.Equal(t, "Outra Escola", cfg.Transfers.ExternalLabel)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Notifications.Async)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LEDGER_AVERAGE_THRESHOLD", "6.5")
	t.Setenv("LEDGER_BATCH_CONCURRENCY", "2")
	t.Setenv("TRANSFER_EXTERNAL_LABEL", " Other School ")
	t.Setenv("NOTIFICATIONS_RETRY_DELAY", "bogus")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6.5, cfg.Ledger.AverageThreshold)
	assert.Equal(t, 2, cfg.Ledger.BatchConcurrency)
	assert.Equal(t, "Other School", cfg.Transfers.ExternalLabel)
	assert.Equal(t, 2*time.Second, cfg.Notifications.RetryDelay)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , ,b"))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
