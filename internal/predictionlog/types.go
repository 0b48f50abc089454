// Package predictionlog records every successful prediction together with its input.
// Records are append-only and read back newest first.
package predictionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/heart-risk-service/internal/domain"
)

// Drivers accepted by Open
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultHistoryLimit is the number of records shown when no limit is given
const DefaultHistoryLimit = 5

// Record is one logged prediction.
type Record struct {
	ID          int64           `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Input       domain.Features `json:"input_data"`
	Prediction  int             `json:"prediction"`
	Probability float64         `json:"probability"`
	Result      string          `json:"result"`
}

// NewRecord builds a record from a successful prediction.
func NewRecord(input domain.Features, result *domain.PredictionResult) *Record {
	return &Record{
		Input:       input,
		Prediction:  result.Prediction,
		Probability: result.Probability,
		Result:      result.Result,
	}
}

// Store defines the interface for prediction log storage.
type Store interface {
	// Append persists a record and returns its assigned id. The record is
	// durable when Append returns.
	Append(ctx context.Context, record *Record) (int64, error)

	// Recent returns at most limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// ExportJSON writes every record to writer, newest first.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close releases resources.
	Close() error
}

// Export is the JSON export document.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Records    []*Record `json:"records"`
}

const exportVersion = "1.0"

// validateRecord rejects anything that is not the output of a successful prediction.
func validateRecord(r *Record) error {
	if r == nil {
		return domain.NewValidationError("record", "record is required", nil)
	}
	if r.Prediction != 0 && r.Prediction != 1 {
		return domain.NewValidationError("prediction", "prediction must be 0 or 1", r.Prediction)
	}
	if math.IsNaN(r.Probability) || r.Probability < 0 || r.Probability > 1 {
		return domain.NewValidationError("probability", "probability must be within [0, 1]", r.Probability)
	}
	if r.Result == "" {
		return domain.NewValidationError("result", "result label is required", r.Result)
	}
	return nil
}

func validateLimit(limit int) error {
	if limit <= 0 {
		return domain.NewValidationError("limit", "limit must be positive", limit)
	}
	return nil
}

func encodeInput(f domain.Features) (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("encoding input: %w", err)
	}
	return string(data), nil
}

func decodeInput(data string) (domain.Features, error) {
	var f domain.Features
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return f, fmt.Errorf("decoding input_data: %v: %w", err, domain.ErrStore)
	}
	return f, nil
}

func writeExport(writer io.Writer, records []*Record) error {
	export := &Export{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(records),
		Records:    records,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
