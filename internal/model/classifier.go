// Package model loads the serialized classifier and exposes it as an opaque
// Classifier capability.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/heart-risk-service/internal/domain"
)

// Classifier is the binary heart-disease predictor used by the service.
// Implementations must be deterministic and safe for concurrent use.
type Classifier interface {
	// Classify returns the predicted class, 0 or 1.
	Classify(features domain.Features) (int, error)
	// Score returns the probability of class 1.
	Score(features domain.Features) (float64, error)
}

// Artifact is the serialized form of a standardized logistic-regression model.
type Artifact struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Features     []string  `json:"features"`
	Means        []float64 `json:"means"`
	Scales       []float64 `json:"scales"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold"`
}

// Info describes a loaded model
type Info struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Features  []string `json:"features"`
	Threshold float64  `json:"threshold"`
}

// LogisticModel implements Classifier from an Artifact
type LogisticModel struct {
	artifact Artifact
}

// LoadFile reads and validates a model artifact.
func LoadFile(path string) (*LogisticModel, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("model artifact not found at %s: %w", path, domain.ErrConfiguration)
		}
		return nil, fmt.Errorf("opening model artifact %s: %v: %w", path, err, domain.ErrConfiguration)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a JSON artifact and validates it.
func Decode(r io.Reader) (*LogisticModel, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding model artifact: %v: %w", err, domain.ErrConfiguration)
	}
	return New(a)
}

// New validates an artifact and wraps it as a Classifier. The artifact's
// feature list must match the training column order exactly.
func New(a Artifact) (*LogisticModel, error) {
	n := len(domain.FeatureColumns)
	if len(a.Features) != n {
		return nil, fmt.Errorf("artifact has %d features, expected %d: %w", len(a.Features), n, domain.ErrConfiguration)
	}
	for i, name := range domain.FeatureColumns {
		if a.Features[i] != name {
			return nil, fmt.Errorf("artifact feature %d is %q, expected %q: %w", i, a.Features[i], name, domain.ErrConfiguration)
		}
	}
	if len(a.Coefficients) != n {
		return nil, fmt.Errorf("artifact has %d coefficients, expected %d: %w", len(a.Coefficients), n, domain.ErrConfiguration)
	}

	// Unscaled models leave means and scales out.
	if a.Means == nil {
		a.Means = make([]float64, n)
	}
	if a.Scales == nil {
		a.Scales = make([]float64, n)
		for i := range a.Scales {
			a.Scales[i] = 1
		}
	}
	if len(a.Means) != n || len(a.Scales) != n {
		return nil, fmt.Errorf("artifact scaler has %d means and %d scales, expected %d: %w",
			len(a.Means), len(a.Scales), n, domain.ErrConfiguration)
	}

	for i := 0; i < n; i++ {
		if a.Scales[i] == 0 || !finite(a.Scales[i]) || !finite(a.Means[i]) || !finite(a.Coefficients[i]) {
			return nil, fmt.Errorf("artifact parameters for %s are invalid: %w", a.Features[i], domain.ErrConfiguration)
		}
	}
	if !finite(a.Intercept) {
		return nil, fmt.Errorf("artifact intercept is invalid: %w", domain.ErrConfiguration)
	}

	if a.Threshold == 0 {
		a.Threshold = 0.5
	}
	if a.Threshold <= 0 || a.Threshold >= 1 {
		return nil, fmt.Errorf("artifact threshold %v outside (0,1): %w", a.Threshold, domain.ErrConfiguration)
	}

	return &LogisticModel{artifact: a}, nil
}

// Score returns the probability of heart disease.
func (m *LogisticModel) Score(features domain.Features) (float64, error) {
	x := features.Vector()

	z := m.artifact.Intercept
	for i, v := range x {
		z += m.artifact.Coefficients[i] * (v - m.artifact.Means[i]) / m.artifact.Scales[i]
	}
	if !finite(z) {
		return 0, fmt.Errorf("decision function is not finite for input: %w", domain.ErrPrediction)
	}

	return sigmoid(z), nil
}

// Classify returns 1 when the score reaches the artifact threshold.
func (m *LogisticModel) Classify(features domain.Features) (int, error) {
	p, err := m.Score(features)
	if err != nil {
		return 0, err
	}
	if p >= m.artifact.Threshold {
		return 1, nil
	}
	return 0, nil
}

// Info returns the model metadata
func (m *LogisticModel) Info() Info {
	return Info{
		Name:      m.artifact.Name,
		Version:   m.artifact.Version,
		Features:  append([]string(nil), m.artifact.Features...),
		Threshold: m.artifact.Threshold,
	}
}

// sigmoid is evaluated in the form that avoids overflow for large |z|.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
