package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/heart-risk-service/internal/api"
	"github.com/heart-risk-service/internal/config"
	"github.com/heart-risk-service/internal/logging"
	"github.com/heart-risk-service/internal/model"
	"github.com/heart-risk-service/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: search ., ./config, /etc/heart-risk)")
	flag.Parse()

	// Load configuration
	configManager, err := config.NewManagerWithFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging)

	// A missing artifact leaves the service up in degraded mode.
	state := model.LoadState(cfg.Model.Path)
	logger.WithFields(logrus.Fields{
		"model_path":   cfg.Model.Path,
		"model_status": state.Status(),
	}).Info("Model load attempted")

	predictor, err := service.NewPredictionService(state, cfg.Model.CacheSize, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create prediction service")
	}

	server := api.NewServer(configManager, predictor, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting heart disease prediction API")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
