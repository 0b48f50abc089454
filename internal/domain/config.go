package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Model     ModelConfig     `mapstructure:"model"`
	Store     StoreConfig     `mapstructure:"store"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ModelConfig points at the serialized classifier loaded at startup
type ModelConfig struct {
	Path      string `mapstructure:"path"`
	CacheSize int    `mapstructure:"cache_size"` // 0 disables the prediction memo
}

// StoreConfig represents the normalized store and the interaction log locations
type StoreConfig struct {
	SourceCSV      string `mapstructure:"source_csv"`
	WarehousePath  string `mapstructure:"warehouse_path"`
	LogDriver      string `mapstructure:"log_driver"` // "sqlite", "postgres"
	LogPath        string `mapstructure:"log_path"`
	PostgresURL    string `mapstructure:"postgres_url"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxConns       int32  `mapstructure:"max_conns"`
}

// DashboardConfig represents the prediction service client used by the dashboard
type DashboardConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	OptionsPath  string        `mapstructure:"options_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    int           `mapstructure:"rate_limit"` // requests per second
	HistoryLimit int           `mapstructure:"history_limit"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
