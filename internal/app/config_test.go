package app

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, cfg.CacheTTL)
	require.Equal(t, 5*time.Second, cfg.ReportTimeout)
	require.Equal(t, 10, cfg.ExportRatePerMinute)
	require.Equal(t, 5, cfg.DashboardRecentLimit)
	require.Equal(t, "*/15 * * * *", cfg.WarmupCron)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverridesAndValidation(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("DASHBOARD_RECENT_LIMIT", "8")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 90*time.Second, cfg.CacheTTL)
	require.Equal(t, 8, cfg.DashboardRecentLimit)

	t.Setenv("DASHBOARD_RECENT_LIMIT", "0")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("DASHBOARD_RECENT_LIMIT", "5")
	t.Setenv("CACHE_TTL", "soon")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("report built")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "report built", line["msg"])
	require.Equal(t, "production", line["env"])
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func TestDerivedConnectionOptions(t *testing.T) {
	cfg := &Config{PGMaxConns: 4, RedisAddr: "redis:6379", RedisPassword: "s3cret", RedisDB: 3}

	pool := cfg.PoolOptions("worker")
	require.EqualValues(t, 4, pool.MaxConns)
	require.Equal(t, "cashledger-worker", pool.ApplicationName)

	redisOpts := cfg.RedisOptions()
	require.Equal(t, "redis:6379", redisOpts.Addr)
	require.Equal(t, 3, redisOpts.DB)

	queue := cfg.QueueOptions()
	require.Equal(t, "s3cret", queue.Password)
	require.Equal(t, 3, queue.DB)
}
