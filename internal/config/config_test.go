package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tablemap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults with table from env", func(t *testing.T) {
		cfg, err := Load("", env(map[string]string{"TABLEMAP_TABLE": "orders"}))
		require.NoError(t, err)
		assert.Equal(t, "orders", cfg.Table.Name)
		assert.Equal(t, 1000, cfg.Query.PageSize)
		assert.Equal(t, 100, cfg.Query.BatchSize)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.False(t, cfg.Metrics.Enabled)
	})

	t.Run("file then env", func(t *testing.T) {
		path := writeConfig(t, `
table:
  name: orders
  region: eu-west-1
  endpoint: http://localhost:8000
query:
  page_size: 50
  batch_size: 25
log:
  level: debug
  format: console
metrics:
  enabled: true
  namespace: shop
`)
		cfg, err := Load(path, env(map[string]string{
			"TABLEMAP_PAGE_SIZE": "200",
			"TABLEMAP_LOG_LEVEL": "warn",
		}))
		require.NoError(t, err)
		assert.Equal(t, "orders", cfg.Table.Name)
		assert.Equal(t, "eu-west-1", cfg.Table.Region)
		assert.Equal(t, "http://localhost:8000", cfg.Table.Endpoint)
		assert.Equal(t, 200, cfg.Query.PageSize)
		assert.Equal(t, 25, cfg.Query.BatchSize)
		assert.Equal(t, "warn", cfg.Log.Level)
		assert.Equal(t, "console", cfg.Log.Format)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, "shop", cfg.Metrics.Namespace)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name string
			path string
			env  map[string]string
			want string
		}{
			{name: "missing file", path: filepath.Join(t.TempDir(), "nope.yaml"), want: "failed to read config file"},
			{name: "bad yaml", path: writeConfig(t, "table: ["), want: "failed to parse"},
			{name: "no table", env: map[string]string{}, want: "validation failed"},
			{name: "short table name", env: map[string]string{"TABLEMAP_TABLE": "ab"}, want: "validation failed"},
			{name: "page size too large", env: map[string]string{"TABLEMAP_TABLE": "orders", "TABLEMAP_PAGE_SIZE": "5000"}, want: "PageSize"},
			{name: "batch size not a number", env: map[string]string{"TABLEMAP_TABLE": "orders", "TABLEMAP_BATCH_SIZE": "many"}, want: "invalid TABLEMAP_BATCH_SIZE"},
			{name: "bad level", env: map[string]string{"TABLEMAP_TABLE": "orders", "TABLEMAP_LOG_LEVEL": "trace"}, want: "Level"},
			{name: "bad endpoint", env: map[string]string{"TABLEMAP_TABLE": "orders", "TABLEMAP_ENDPOINT": "not a url"}, want: "Endpoint"},
			{name: "bad bool", env: map[string]string{"TABLEMAP_TABLE": "orders", "TABLEMAP_METRICS_ENABLED": "perhaps"}, want: "invalid TABLEMAP_METRICS_ENABLED"},
			{name: "metrics without namespace", env: map[string]string{
				"TABLEMAP_TABLE":             "orders",
				"TABLEMAP_METRICS_ENABLED":   "true",
				"TABLEMAP_METRICS_NAMESPACE": "",
			}, want: "Namespace"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := Load(tt.path, env(tt.env))
				assert.ErrorContains(t, err, tt.want)
			})
		}
	})
}

func TestConfig_NewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := Default()
		cfg.Log.Format = format
		cfg.Log.Level = "debug"

		logger, err := cfg.NewLogger()
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(-1), format)
	}

	cfg := Default()
	cfg.Log.Level = "loud"
	_, err := cfg.NewLogger()
	assert.Error(t, err)
}
