package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cometwk/standards/pkg/config"
	"github.com/cometwk/standards/pkg/gateway"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		ServiceName:      "standards-resolver",
		Version:          "test",
		Backend:          config.BackendMemory,
		CacheDir:         t.TempDir(),
		CacheTTL:         time.Hour,
		CacheMaxBytes:    1 << 20,
		DBDriver:         "sqlite3",
		DBURL:            ":memory:",
		AutoSyncEnabled:  true,
		AutoSyncInterval: time.Hour,
	}
}

func TestNewApp(t *testing.T) {
	logrus.SetLevel(logrus.WarnLevel)
	app, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	deps := app.Deps()
	assert.NotNil(t, deps.Gateway)
	assert.NotNil(t, deps.Cache)
	assert.NotNil(t, deps.Store)
	assert.NotNil(t, deps.Sync)
	assert.NotNil(t, deps.Runner)

	sched, err := newScheduler(app)
	require.NoError(t, err)
	assert.Len(t, sched.Entries(), 2)
}

func TestNewAppAutoSyncDisabled(t *testing.T) {
	logrus.SetLevel(logrus.WarnLevel)
	cfg := testConfig(t)
	cfg.AutoSyncEnabled = false
	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	sched, err := newScheduler(app)
	require.NoError(t, err)
	assert.Len(t, sched.Entries(), 1)
}

func TestNewAppMissingStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBURL = ""
	_, err := NewApp(context.Background(), cfg)
	var ce *config.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "DB_URL", ce.Key)
}

func TestNewBackend(t *testing.T) {
	cfg := testConfig(t)
	b, err := newBackend(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &gateway.MemoryBackend{}, b)

	cfg.GatewayRPS = 5
	b, err = newBackend(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &gateway.RateLimited{}, b)

	cfg.Backend = "ftp"
	_, err = newBackend(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCacheCommandOffline(t *testing.T) {
	cfg := testConfig(t)
	lc, err := newCache(nil, cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.CacheDir, "a.txt"), []byte("hello"), 0o644))

	stats, err := lc.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FileCount)

	removed, err := lc.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, removed.FileCount)
}
