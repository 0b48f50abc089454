// Package service implements the stateless prediction service.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/heart-risk-service/internal/domain"
	"github.com/heart-risk-service/internal/model"
)

// PredictionService maps features to a prediction through the loaded classifier.
// It holds no mutable state besides an optional memo of past results.
type PredictionService struct {
	state  model.State
	memo   *lru.Cache[domain.Features, domain.PredictionResult]
	logger *logrus.Logger
}

// NewPredictionService creates a new prediction service. cacheSize 0 disables the memo.
func NewPredictionService(state model.State, cacheSize int, logger *logrus.Logger) (*PredictionService, error) {
	s := &PredictionService{
		state:  state,
		logger: logger,
	}

	if cacheSize > 0 {
		memo, err := lru.New[domain.Features, domain.PredictionResult](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating prediction memo: %w", err)
		}
		s.memo = memo
	}

	logger.WithFields(logrus.Fields{
		"model_status": state.Status(),
		"cache_size":   cacheSize,
	}).Info("Prediction service initialized")

	if reason := state.Reason(); reason != nil {
		logger.WithError(reason).Warn("Model not loaded, prediction service starting degraded")
	}

	return s, nil
}

// State returns the model state the service was built with
func (s *PredictionService) State() model.State {
	return s.state
}

// Ready reports whether predictions can be served
func (s *PredictionService) Ready() bool {
	return s.state.IsReady()
}

// Predict classifies one set of features.
func (s *PredictionService) Predict(ctx context.Context, features domain.Features) (*domain.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	classifier, err := s.state.Classifier()
	if err != nil {
		return nil, err
	}

	if s.memo != nil {
		if cached, ok := s.memo.Get(features); ok {
			return &cached, nil
		}
	}

	start := time.Now()
	result, err := invoke(classifier, features)
	if err != nil {
		s.logger.WithError(err).WithField("features", features).Error("Prediction failed")
		return nil, err
	}

	if s.memo != nil {
		s.memo.Add(features, *result)
	}

	s.logger.WithFields(logrus.Fields{
		"prediction":  result.Prediction,
		"probability": result.Probability,
		"duration_us": time.Since(start).Microseconds(),
	}).Debug("Prediction completed")

	return result, nil
}

// invoke calls the classifier and checks that its output is well formed.
func invoke(classifier model.Classifier, features domain.Features) (result *domain.PredictionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("classifier panicked: %v: %w", r, domain.ErrPrediction)
		}
	}()

	class, err := classifier.Classify(features)
	if err != nil {
		return nil, asPredictionError(err)
	}
	probability, err := classifier.Score(features)
	if err != nil {
		return nil, asPredictionError(err)
	}

	if class != 0 && class != 1 {
		return nil, fmt.Errorf("classifier returned class %d: %w", class, domain.ErrPrediction)
	}
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return nil, fmt.Errorf("classifier returned probability %v: %w", probability, domain.ErrPrediction)
	}

	return &domain.PredictionResult{
		Prediction:  class,
		Probability: probability,
		Result:      domain.ResultLabel(class),
	}, nil
}

func asPredictionError(err error) error {
	if errors.Is(err, domain.ErrPrediction) {
		return err
	}
	return fmt.Errorf("%v: %w", err, domain.ErrPrediction)
}

// Describe returns metadata of the loaded model.
func (s *PredictionService) Describe() (*model.Info, error) {
	classifier, err := s.state.Classifier()
	if err != nil {
		return nil, err
	}

	type describer interface{ Info() model.Info }
	if d, ok := classifier.(describer); ok {
		info := d.Info()
		return &info, nil
	}
	return &model.Info{Features: append([]string(nil), domain.FeatureColumns...)}, nil
}
