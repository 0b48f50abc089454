package predictionlog

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/heart-risk-service/internal/database"
	"github.com/heart-risk-service/internal/domain"
)

// Open returns the store selected by cfg.LogDriver. The PostgreSQL backend runs
// pending migrations before connecting.
func Open(ctx context.Context, cfg domain.StoreConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.LogDriver {
	case "", DriverSQLite:
		store, err := NewSQLiteStore(ctx, cfg.LogPath)
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"driver": DriverSQLite,
			"path":   cfg.LogPath,
		}).Info("Prediction log opened")
		return store, nil

	case DriverPostgres:
		if err := database.Migrate(ctx, cfg.PostgresURL, cfg.MigrationsPath, logger); err != nil {
			return nil, fmt.Errorf("migrating prediction log: %v: %w", err, domain.ErrStore)
		}

		db, err := database.NewConnection(ctx, database.Config{
			URL:      cfg.PostgresURL,
			MaxConns: cfg.MaxConns,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting prediction log: %v: %w", err, domain.ErrStore)
		}

		store, err := NewPostgresStore(ctx, db.Pool)
		if err != nil {
			db.Close()
			return nil, err
		}
		store.onClose = db.Close

		logger.WithField("driver", DriverPostgres).Info("Prediction log opened")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown prediction log driver %q: %w", cfg.LogDriver, domain.ErrConfiguration)
	}
}
