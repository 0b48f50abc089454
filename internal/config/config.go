package config

import (
	"fmt"
	"strings"

	"github.com/heart-risk-service/internal/domain"
	"github.com/spf13/viper"
)

// DefaultAPIURL is the prediction service the dashboard targets when API_URL is unset.
const DefaultAPIURL = "http://localhost:8000"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	path   string
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile creates a configuration manager reading an explicit
// config file. An empty path searches the default locations.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New(), path: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	// SetConfigName clears an explicit file, so search paths only apply without one
	v.SetConfigType("yaml")
	if m.path != "" {
		v.SetConfigFile(m.path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/heart-risk/")
	}

	// Set environment variable prefix and enable automatic env binding
	v.SetEnvPrefix("HEART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The dashboard has always honoured a bare API_URL.
	if err := v.BindEnv("dashboard.api_url", "HEART_DASHBOARD_API_URL", "API_URL"); err != nil {
		return fmt.Errorf("binding API_URL: %w", err)
	}

	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Model defaults
	v.SetDefault("model.path", "models/best_model.json")
	v.SetDefault("model.cache_size", 256)

	// Store defaults
	v.SetDefault("store.source_csv", "data/heart.csv")
	v.SetDefault("store.warehouse_path", "data/heart.db")
	v.SetDefault("store.log_driver", "sqlite")
	v.SetDefault("store.log_path", "data/predictions.db")
	v.SetDefault("store.postgres_url", "postgres://postgres@localhost:5432/heart_risk?sslmode=disable")
	v.SetDefault("store.migrations_path", "migrations")
	v.SetDefault("store.max_conns", 10)

	// Dashboard defaults
	v.SetDefault("dashboard.api_url", DefaultAPIURL)
	v.SetDefault("dashboard.options_path", "config/dashboard_options.json")
	v.SetDefault("dashboard.timeout", "10s")
	v.SetDefault("dashboard.rate_limit", 5)
	v.SetDefault("dashboard.history_limit", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetModelConfig returns model configuration
func (m *Manager) GetModelConfig() *domain.ModelConfig {
	return &m.config.Model
}

// GetStoreConfig returns store configuration
func (m *Manager) GetStoreConfig() *domain.StoreConfig {
	return &m.config.Store
}

// GetDashboardConfig returns dashboard configuration
func (m *Manager) GetDashboardConfig() *domain.DashboardConfig {
	return &m.config.Dashboard
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d: %w", config.Server.Port, domain.ErrConfiguration)
	}

	if config.Model.Path == "" {
		return fmt.Errorf("model path is required: %w", domain.ErrConfiguration)
	}
	if config.Model.CacheSize < 0 {
		return fmt.Errorf("model cache size cannot be negative: %w", domain.ErrConfiguration)
	}

	switch config.Store.LogDriver {
	case "sqlite":
		if config.Store.LogPath == "" {
			return fmt.Errorf("store log path is required for sqlite: %w", domain.ErrConfiguration)
		}
	case "postgres":
		if config.Store.PostgresURL == "" {
			return fmt.Errorf("store postgres url is required: %w", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("invalid store log driver %q: %w", config.Store.LogDriver, domain.ErrConfiguration)
	}
	if config.Store.WarehousePath == "" {
		return fmt.Errorf("store warehouse path is required: %w", domain.ErrConfiguration)
	}

	if config.Dashboard.APIURL == "" {
		return fmt.Errorf("dashboard API URL is required: %w", domain.ErrConfiguration)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level %s: %w", config.Logging.Level, domain.ErrConfiguration)
	}

	return nil
}
