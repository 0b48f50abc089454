package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heart-risk-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "models/best_model.json", cfg.Model.Path)
	assert.Equal(t, 256, cfg.Model.CacheSize)
	assert.Equal(t, "sqlite", cfg.Store.LogDriver)
	assert.Equal(t, "data/heart.db", cfg.Store.WarehousePath)
	assert.Equal(t, DefaultAPIURL, cfg.Dashboard.APIURL)
	assert.Equal(t, 10*time.Second, cfg.Dashboard.Timeout)
	assert.Equal(t, 5, cfg.Dashboard.HistoryLimit)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, m.Validate())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HEART_SERVER_PORT", "9090")
	t.Setenv("HEART_MODEL_PATH", "/tmp/model.json")
	t.Setenv("HEART_STORE_LOG_DRIVER", "postgres")
	t.Setenv("HEART_LOGGING_LEVEL", "debug")

	m, err := NewManager()
	require.NoError(t, err)

	assert.Equal(t, 9090, m.GetServerConfig().Port)
	assert.Equal(t, "/tmp/model.json", m.GetModelConfig().Path)
	assert.Equal(t, "postgres", m.GetStoreConfig().LogDriver)
	assert.Equal(t, "debug", m.GetConfig().Logging.Level)
}

func TestNewManager_APIURLEnv(t *testing.T) {
	t.Setenv("API_URL", "http://api:8000/predict")

	m, err := NewManager()
	require.NoError(t, err)

	assert.Equal(t, "http://api:8000/predict", m.GetDashboardConfig().APIURL)
}

func TestNewManagerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8123
store:
  warehouse_path: /var/lib/heart/heart.db
dashboard:
  history_limit: 20
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := NewManagerWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8123, m.GetServerConfig().Port)
	assert.Equal(t, "/var/lib/heart/heart.db", m.GetStoreConfig().WarehousePath)
	assert.Equal(t, 20, m.GetDashboardConfig().HistoryLimit)
	// untouched keys keep defaults
	assert.Equal(t, "sqlite", m.GetStoreConfig().LogDriver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *domain.Config)
	}{
		{"bad port", func(c *domain.Config) { c.Server.Port = 0 }},
		{"empty model path", func(c *domain.Config) { c.Model.Path = "" }},
		{"negative cache", func(c *domain.Config) { c.Model.CacheSize = -1 }},
		{"unknown driver", func(c *domain.Config) { c.Store.LogDriver = "mysql" }},
		{"sqlite without path", func(c *domain.Config) { c.Store.LogPath = "" }},
		{"postgres without url", func(c *domain.Config) {
			c.Store.LogDriver = "postgres"
			c.Store.PostgresURL = ""
		}},
		{"empty warehouse", func(c *domain.Config) { c.Store.WarehousePath = "" }},
		{"empty api url", func(c *domain.Config) { c.Dashboard.APIURL = "" }},
		{"bad log level", func(c *domain.Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager()
			require.NoError(t, err)

			tt.mutate(m.GetConfig())

			err = m.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
		})
	}
}
