package dashboard

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/heart-risk-service/internal/domain"
	"github.com/heart-risk-service/internal/predictionlog"
)

// Dashboard submits form input to the prediction service and keeps the
// interaction log. Only successful predictions are logged.
type Dashboard struct {
	predictor    domain.Predictor
	store        predictionlog.Store
	options      *Options
	historyLimit int
	logger       *logrus.Logger
}

// New creates a new dashboard. options may be nil to skip form constraints.
func New(predictor domain.Predictor, store predictionlog.Store, options *Options, historyLimit int, logger *logrus.Logger) *Dashboard {
	if historyLimit <= 0 {
		historyLimit = predictionlog.DefaultHistoryLimit
	}
	return &Dashboard{
		predictor:    predictor,
		store:        store,
		options:      options,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Defaults returns the initial form values, or the sample patient when no
// options are configured.
func (d *Dashboard) Defaults() domain.Features {
	if d.options == nil {
		return domain.SampleFeatures()
	}
	return d.options.Defaults()
}

// Submit predicts and then appends the outcome to the log. When the
// prediction succeeds but logging fails, the record is returned together
// with the store error so the caller can still show the result.
func (d *Dashboard) Submit(ctx context.Context, features domain.Features) (*predictionlog.Record, error) {
	if d.options != nil {
		if err := d.options.Check(features); err != nil {
			return nil, err
		}
	}

	result, err := d.predictor.Predict(ctx, features)
	if err != nil {
		d.logger.WithError(err).Warn("Prediction failed, nothing logged")
		return nil, err
	}

	record := predictionlog.NewRecord(features, result)
	if _, err := d.store.Append(ctx, record); err != nil {
		d.logger.WithError(err).Error("Prediction succeeded but could not be logged")
		return record, fmt.Errorf("logging prediction: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"id":          record.ID,
		"prediction":  record.Prediction,
		"probability": record.Probability,
	}).Info("Prediction logged")

	return record, nil
}

// History returns the most recent records, newest first. A non-positive
// limit uses the configured default.
func (d *Dashboard) History(ctx context.Context, limit int) ([]*predictionlog.Record, error) {
	if limit <= 0 {
		limit = d.historyLimit
	}
	return d.store.Recent(ctx, limit)
}
