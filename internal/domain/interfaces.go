package domain

import (
	"context"
)

// Predictor turns one set of features into a prediction. The prediction
// service implements it in-process; the dashboard client implements it over HTTP.
type Predictor interface {
	Predict(ctx context.Context, features Features) (*PredictionResult, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetModelConfig() *ModelConfig
	GetStoreConfig() *StoreConfig
	GetDashboardConfig() *DashboardConfig
	Reload() error
	Validate() error
}
