package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, StorageSQL, cfg.Storage)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/devhelper.db", cfg.Database.DSN)
	assert.Equal(t, DeliveryLog, cfg.Delivery.Driver)
	assert.Equal(t, time.Minute, cfg.Sessions.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Digests.Interval)
	assert.Equal(t, 5, cfg.Digests.ItemsPerSource)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_TG_TOKEN", "123:secret")

	cfg, err := Parse([]byte(`
delivery:
  driver: telegram
  telegram:
    token: ${TEST_TG_TOKEN}
digests:
  interval: 30m
  workers: 3
  run_on_start: true
  items_per_source: 2
`))
	require.NoError(t, err)

	assert.Equal(t, "123:secret", cfg.Delivery.Telegram.Token)
	assert.Equal(t, 30*time.Minute, cfg.Digests.Interval)
	assert.Equal(t, 3, cfg.Digests.Workers)
	assert.True(t, cfg.Digests.RunOnStart)
	assert.Equal(t, 2, cfg.Digests.ItemsPerSource)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown storage", yaml: "storage: redis"},
		{name: "unknown database driver", yaml: "database:\n  driver: mysql"},
		{name: "postgres without dsn", yaml: "database:\n  driver: postgres"},
		{name: "telegram without token", yaml: "delivery:\n  driver: telegram"},
		{name: "unknown delivery", yaml: "delivery:\n  driver: smtp"},
		{name: "bad timezone", yaml: "render:\n  timezone: Mars/Olympus"},
		{name: "malformed yaml", yaml: "storage: [sql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: mongo\nmongo:\n  database: test\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StorageMongo, cfg.Storage)
	assert.Equal(t, "test", cfg.Mongo.Database)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
