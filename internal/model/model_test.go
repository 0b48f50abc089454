package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heart-risk-service/internal/domain"
)

const artifactPath = "../../models/best_model.json"

func validArtifact() Artifact {
	return Artifact{
		Name:         "test",
		Version:      "0.0.1",
		Features:     append([]string(nil), domain.FeatureColumns...),
		Coefficients: make([]float64, len(domain.FeatureColumns)),
		Threshold:    0.5,
	}
}

func TestLoadFile_ShippedArtifact(t *testing.T) {
	m, err := LoadFile(artifactPath)
	require.NoError(t, err)

	info := m.Info()
	assert.Equal(t, "heart-disease-logreg", info.Name)
	assert.Equal(t, domain.FeatureColumns, info.Features)
	assert.Equal(t, 0.5, info.Threshold)
}

func TestLogisticModel_SamplePatient(t *testing.T) {
	m, err := LoadFile(artifactPath)
	require.NoError(t, err)

	sample := domain.SampleFeatures()
	p, err := m.Score(sample)
	require.NoError(t, err)
	assert.InDelta(t, 0.8477405578, p, 1e-9)

	class, err := m.Classify(sample)
	require.NoError(t, err)
	assert.Equal(t, 1, class)

	// repeated calls are bit-for-bit identical
	for i := 0; i < 10; i++ {
		again, err := m.Score(sample)
		require.NoError(t, err)
		assert.Equal(t, math.Float64bits(p), math.Float64bits(again))
	}
}

func TestLogisticModel_LowRiskPatient(t *testing.T) {
	m, err := LoadFile(artifactPath)
	require.NoError(t, err)

	f := domain.Features{Age: 67, Sex: 1, CP: 0, Trestbps: 160, Chol: 286, Fbs: 0, RestECG: 0, Thalach: 108, Exang: 1, Oldpeak: 1.5, Slope: 1, CA: 3, Thal: 2}
	p, err := m.Score(f)
	require.NoError(t, err)
	assert.InDelta(t, 0.0038955041, p, 1e-9)

	class, err := m.Classify(f)
	require.NoError(t, err)
	assert.Equal(t, 0, class)
}

func TestNew_Defaults(t *testing.T) {
	a := validArtifact()
	a.Threshold = 0

	m, err := New(a)
	require.NoError(t, err)

	// zero coefficients give exactly one half
	p, err := m.Score(domain.SampleFeatures())
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)
	assert.Equal(t, 0.5, m.Info().Threshold)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"missing feature", func(a *Artifact) { a.Features = a.Features[:12] }},
		{"reordered features", func(a *Artifact) { a.Features[0], a.Features[1] = a.Features[1], a.Features[0] }},
		{"short coefficients", func(a *Artifact) { a.Coefficients = a.Coefficients[:5] }},
		{"zero scale", func(a *Artifact) {
			a.Scales = make([]float64, 13)
		}},
		{"mismatched means", func(a *Artifact) { a.Means = []float64{1} }},
		{"nan coefficient", func(a *Artifact) { a.Coefficients[3] = math.NaN() }},
		{"infinite intercept", func(a *Artifact) { a.Intercept = math.Inf(1) }},
		{"threshold above one", func(a *Artifact) { a.Threshold = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validArtifact()
			tt.mutate(&a)

			_, err := New(a)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
		})
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"name":"x","estimator":"RandomForest"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestScore_NonFinite(t *testing.T) {
	a := validArtifact()
	a.Coefficients[domain.FeatureIndex(domain.ColChol)] = math.MaxFloat64
	m, err := New(a)
	require.NoError(t, err)

	f := domain.SampleFeatures()
	f.Chol = 1 << 30
	_, err = m.Score(f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPrediction))

	_, err = m.Classify(f)
	assert.True(t, errors.Is(err, domain.ErrPrediction))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestState(t *testing.T) {
	t.Run("uninitialized", func(t *testing.T) {
		s := Uninitialized()
		assert.Equal(t, StatusUninitialized, s.Status())
		assert.False(t, s.IsReady())
		_, err := s.Classifier()
		assert.True(t, errors.Is(err, domain.ErrModelUnavailable))

		var zero State
		assert.Equal(t, StatusUninitialized, zero.Status())
	})

	t.Run("ready", func(t *testing.T) {
		s := LoadState(artifactPath)
		assert.Equal(t, StatusReady, s.Status())
		assert.True(t, s.IsReady())
		c, err := s.Classifier()
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("missing artifact", func(t *testing.T) {
		s := LoadState(filepath.Join(t.TempDir(), "best_model.json"))
		assert.Equal(t, StatusFailed, s.Status())
		assert.True(t, errors.Is(s.Reason(), domain.ErrConfiguration))
		_, err := s.Classifier()
		assert.True(t, errors.Is(err, domain.ErrModelUnavailable))
	})

	t.Run("corrupt artifact", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "best_model.json")
		require.NoError(t, os.WriteFile(path, []byte("\x80\x04\x95joblib"), 0o644))
		s := LoadState(path)
		assert.Equal(t, StatusFailed, s.Status())
	})

	t.Run("nil classifier", func(t *testing.T) {
		assert.Equal(t, StatusFailed, Ready(nil).Status())
	})
}
