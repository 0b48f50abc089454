package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/heart-risk-service/internal/domain"
)

// Options describes the input form: numeric fields bounded by a [min, max]
// range and fields chosen from a fixed list of codes.
type Options struct {
	SliderFields       map[string][2]float64 `json:"slider_fields"`
	SingleSelectFields map[string][]int      `json:"single_select_fields"`
}

// LoadOptions reads and validates an options file
func LoadOptions(path string) (*Options, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("options file %s not found: %w", path, domain.ErrConfiguration)
		}
		return nil, fmt.Errorf("opening options file %s: %v: %w", path, err, domain.ErrConfiguration)
	}
	defer f.Close()

	opts, err := DecodeOptions(f)
	if err != nil {
		return nil, fmt.Errorf("options file %s: %w", path, err)
	}
	return opts, nil
}

// DecodeOptions parses and validates options JSON
func DecodeOptions(r io.Reader) (*Options, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var opts Options
	if err := dec.Decode(&opts); err != nil {
		return nil, fmt.Errorf("decoding options: %v: %w", err, domain.ErrConfiguration)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// validate checks that every feature appears in exactly one group.
func (o *Options) validate() error {
	seen := make(map[string]bool, len(domain.FeatureColumns))

	for _, field := range sortedKeys(o.SliderFields) {
		r := o.SliderFields[field]
		if domain.FeatureIndex(field) < 0 {
			return fmt.Errorf("unknown slider field %q: %w", field, domain.ErrConfiguration)
		}
		if math.IsNaN(r[0]) || math.IsNaN(r[1]) || r[0] > r[1] {
			return fmt.Errorf("slider field %q has invalid range %v: %w", field, r, domain.ErrConfiguration)
		}
		seen[field] = true
	}

	for _, field := range sortedKeys(o.SingleSelectFields) {
		if domain.FeatureIndex(field) < 0 {
			return fmt.Errorf("unknown select field %q: %w", field, domain.ErrConfiguration)
		}
		if seen[field] {
			return fmt.Errorf("field %q is both slider and select: %w", field, domain.ErrConfiguration)
		}
		if len(o.SingleSelectFields[field]) == 0 {
			return fmt.Errorf("select field %q has no choices: %w", field, domain.ErrConfiguration)
		}
		seen[field] = true
	}

	for _, column := range domain.FeatureColumns {
		if !seen[column] {
			return fmt.Errorf("field %q missing from options: %w", column, domain.ErrConfiguration)
		}
	}
	return nil
}

// Defaults returns the form's initial values: the midpoint of each range
// (truncated for integer fields) and the first choice of each select.
func (o *Options) Defaults() domain.Features {
	var f domain.Features
	for field, r := range o.SliderFields {
		mid := (r[0] + r[1]) / 2
		if !domain.IsContinuous(field) {
			mid = math.Trunc(mid)
		}
		_ = f.Set(field, mid)
	}
	for field, choices := range o.SingleSelectFields {
		_ = f.Set(field, float64(choices[0]))
	}
	return f
}

// Check applies the constraints the form enforces. The first violation in
// canonical column order is returned.
func (o *Options) Check(f domain.Features) error {
	for _, column := range domain.FeatureColumns {
		v, _ := f.Value(column)

		if r, ok := o.SliderFields[column]; ok {
			if v < r[0] || v > r[1] {
				return domain.NewValidationError(column,
					fmt.Sprintf("must be between %g and %g", r[0], r[1]), v)
			}
			continue
		}

		if choices, ok := o.SingleSelectFields[column]; ok {
			if !containsInt(choices, int(v)) {
				return domain.NewValidationError(column,
					fmt.Sprintf("must be one of %v", choices), int(v))
			}
		}
	}
	return nil
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
