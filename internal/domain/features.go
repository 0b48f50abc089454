package domain

import "math"

// Column names shared by the source file, the normalized store and the classifier.
const (
	ColAge      = "age"
	ColSex      = "sex"
	ColCP       = "cp"
	ColTrestbps = "trestbps"
	ColChol     = "chol"
	ColFbs      = "fbs"
	ColRestECG  = "restecg"
	ColThalach  = "thalach"
	ColExang    = "exang"
	ColOldpeak  = "oldpeak"
	ColSlope    = "slope"
	ColCA       = "ca"
	ColThal     = "thal"
	ColTarget   = "target"
)

// FeatureColumns is the column order the classifier was trained on.
var FeatureColumns = []string{
	ColAge, ColSex, ColCP, ColTrestbps, ColChol, ColFbs, ColRestECG,
	ColThalach, ColExang, ColOldpeak, ColSlope, ColCA, ColThal,
}

// SourceColumns is the flat layout of the source table: features followed by the label.
var SourceColumns = append(append([]string{}, FeatureColumns...), ColTarget)

// CategoricalColumns are the columns normalized into lookup tables.
var CategoricalColumns = []string{ColCP, ColRestECG, ColSlope, ColThal}

// Result labels returned alongside a prediction
const (
	LabelDisease   = "Presence of heart disease"
	LabelNoDisease = "No heart disease"
)

// FeatureIndex returns the position of column in FeatureColumns, or -1.
func FeatureIndex(column string) int {
	for i, c := range FeatureColumns {
		if c == column {
			return i
		}
	}
	return -1
}

// Features holds the 13 clinical inputs of a single patient observation.
// Field order matches FeatureColumns so JSON encoding preserves it.
type Features struct {
	Age      int     `json:"age"`
	Sex      int     `json:"sex"`
	CP       int     `json:"cp"`
	Trestbps int     `json:"trestbps"`
	Chol     int     `json:"chol"`
	Fbs      int     `json:"fbs"`
	RestECG  int     `json:"restecg"`
	Thalach  int     `json:"thalach"`
	Exang    int     `json:"exang"`
	Oldpeak  float64 `json:"oldpeak"`
	Slope    int     `json:"slope"`
	CA       int     `json:"ca"`
	Thal     int     `json:"thal"`
}

// Vector returns the features as floats in FeatureColumns order.
func (f Features) Vector() []float64 {
	return []float64{
		float64(f.Age), float64(f.Sex), float64(f.CP), float64(f.Trestbps),
		float64(f.Chol), float64(f.Fbs), float64(f.RestECG), float64(f.Thalach),
		float64(f.Exang), f.Oldpeak, float64(f.Slope), float64(f.CA), float64(f.Thal),
	}
}

// Categorical returns the value of a categorical column, or false if the
// column is not one of CategoricalColumns.
func (f Features) Categorical(column string) (int, bool) {
	switch column {
	case ColCP:
		return f.CP, true
	case ColRestECG:
		return f.RestECG, true
	case ColSlope:
		return f.Slope, true
	case ColThal:
		return f.Thal, true
	}
	return 0, false
}

// Value returns the value of column as a float, or false for an unknown column.
func (f Features) Value(column string) (float64, bool) {
	i := FeatureIndex(column)
	if i < 0 {
		return 0, false
	}
	return f.Vector()[i], true
}

// Set assigns column from a float. Integer columns only accept whole numbers.
func (f *Features) Set(column string, v float64) error {
	if !IsContinuous(column) && v != math.Trunc(v) {
		return NewValidationError(column, "must be a whole number", v)
	}
	switch column {
	case ColAge:
		f.Age = int(v)
	case ColSex:
		f.Sex = int(v)
	case ColCP:
		f.CP = int(v)
	case ColTrestbps:
		f.Trestbps = int(v)
	case ColChol:
		f.Chol = int(v)
	case ColFbs:
		f.Fbs = int(v)
	case ColRestECG:
		f.RestECG = int(v)
	case ColThalach:
		f.Thalach = int(v)
	case ColExang:
		f.Exang = int(v)
	case ColOldpeak:
		f.Oldpeak = v
	case ColSlope:
		f.Slope = int(v)
	case ColCA:
		f.CA = int(v)
	case ColThal:
		f.Thal = int(v)
	default:
		return NewValidationError(column, "unknown feature", v)
	}
	return nil
}

// IsContinuous reports whether column holds a float rather than an integer.
func IsContinuous(column string) bool {
	return column == ColOldpeak
}

// Row is one record of the source table.
type Row struct {
	Features
	Target int `json:"target"`
}

// SampleFeatures is the reference patient used by the CLI and smoke tests.
func SampleFeatures() Features {
	return Features{
		Age: 63, Sex: 1, CP: 3, Trestbps: 145, Chol: 233, Fbs: 1, RestECG: 0,
		Thalach: 150, Exang: 0, Oldpeak: 2.3, Slope: 0, CA: 0, Thal: 1,
	}
}

// PredictionResult is the outcome of classifying one set of features.
type PredictionResult struct {
	Prediction  int     `json:"prediction"`
	Probability float64 `json:"probability"`
	Result      string  `json:"result"`
}

// ResultLabel maps a binary prediction to its human-readable label.
func ResultLabel(prediction int) string {
	if prediction == 1 {
		return LabelDisease
	}
	return LabelNoDisease
}
