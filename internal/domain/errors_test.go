package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		detail    string
		requestID string
	}{
		{
			name:      "Model unavailable",
			code:      CodeModelUnavailable,
			detail:    "Model not loaded",
			requestID: "req-123",
		},
		{
			name:      "Prediction failure",
			code:      CodePrediction,
			detail:    "non-finite score",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.detail, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Detail != tt.detail {
				t.Errorf("Expected detail %s, got %s", tt.detail, err.Detail)
			}

			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.detail
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("age", "field required", nil)

	expected := "validation error for field 'age': field required"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}

	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationError should match ErrValidation")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{NewValidationError("sex", "bad", 3), CodeValidation},
		{fmt.Errorf("predict: %w", ErrModelUnavailable), CodeModelUnavailable},
		{fmt.Errorf("classify: %w", ErrPrediction), CodePrediction},
		{fmt.Errorf("load: %w", ErrConfiguration), CodeConfiguration},
		{fmt.Errorf("build: %w", ErrSchema), CodeSchema},
		{fmt.Errorf("reconstruct: %w", ErrQuery), CodeQuery},
		{fmt.Errorf("append: %w", ErrStore), CodeStore},
		{errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.want {
			t.Errorf("CodeOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestFeaturesVectorOrder(t *testing.T) {
	f := SampleFeatures()
	v := f.Vector()

	if len(v) != len(FeatureColumns) {
		t.Fatalf("Expected %d values, got %d", len(FeatureColumns), len(v))
	}
	if v[0] != 63 || v[9] != 2.3 || v[12] != 1 {
		t.Errorf("Unexpected vector order: %v", v)
	}
	if len(SourceColumns) != 14 || SourceColumns[13] != ColTarget {
		t.Errorf("SourceColumns should end with target: %v", SourceColumns)
	}
}

func TestFeaturesSet(t *testing.T) {
	f := SampleFeatures()

	if err := f.Set(ColAge, 54); err != nil || f.Age != 54 {
		t.Errorf("Expected age 54, got %d (%v)", f.Age, err)
	}
	if err := f.Set(ColOldpeak, 1.7); err != nil || f.Oldpeak != 1.7 {
		t.Errorf("Expected oldpeak 1.7, got %v (%v)", f.Oldpeak, err)
	}

	err := f.Set(ColAge, 54.7)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error for fractional age, got %v", err)
	}
	if f.Age != 54 {
		t.Errorf("Rejected value should not be assigned, age is %d", f.Age)
	}

	if err := f.Set("weight", 80); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected validation error for unknown column, got %v", err)
	}
}

func TestResultLabel(t *testing.T) {
	if ResultLabel(1) != LabelDisease {
		t.Errorf("Expected %q for 1", LabelDisease)
	}
	if ResultLabel(0) != LabelNoDisease {
		t.Errorf("Expected %q for 0", LabelNoDisease)
	}
}
