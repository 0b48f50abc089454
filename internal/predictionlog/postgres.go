package predictionlog

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heart-risk-service/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
// The schema is expected to exist already (created via migrations).
type PostgresStore struct {
	pool    *pgxpool.Pool
	onClose func()
}

// NewPostgresStore creates a new PostgreSQL prediction log on an existing pool.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database connection is required: %w", domain.ErrStore)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %v: %w", err, domain.ErrStore)
	}

	return &PostgresStore{pool: pool}, nil
}

// Append stores a record and assigns its id and timestamp.
func (s *PostgresStore) Append(ctx context.Context, record *Record) (int64, error) {
	if err := validateRecord(record); err != nil {
		return 0, err
	}

	input, err := encodeInput(record.Input)
	if err != nil {
		return 0, err
	}

	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
		INSERT INTO predictions (timestamp, input_data, prediction, probability, result)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, timestamp
	`

	var id int64
	err = s.pool.QueryRow(ctx, query,
		ts.UTC(),
		input,
		record.Prediction,
		record.Probability,
		record.Result,
	).Scan(&id, &ts)
	if err != nil {
		return 0, fmt.Errorf("failed to save prediction: %v: %w", err, domain.ErrStore)
	}

	record.ID = id
	record.Timestamp = ts.UTC()
	return id, nil
}

// Recent returns at most limit records, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	return s.query(ctx, `
		SELECT id, timestamp, input_data, prediction, probability, result
		FROM predictions
		ORDER BY id DESC
		LIMIT $1
	`, limit)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...interface{}) ([]*Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %v: %w", err, domain.ErrStore)
	}
	defer rows.Close()

	result := make([]*Record, 0)
	for rows.Next() {
		r := &Record{}
		var input string

		if err := rows.Scan(&r.ID, &r.Timestamp, &input, &r.Prediction, &r.Probability, &r.Result); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v: %w", err, domain.ErrStore)
		}
		r.Timestamp = r.Timestamp.UTC()

		if r.Input, err = decodeInput(input); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating predictions: %v: %w", err, domain.ErrStore)
	}
	return result, nil
}

// Count returns the total number of records.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM predictions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %v: %w", err, domain.ErrStore)
	}
	return count, nil
}

// ExportJSON exports every record to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.query(ctx, `
		SELECT id, timestamp, input_data, prediction, probability, result
		FROM predictions
		ORDER BY id DESC
	`)
	if err != nil {
		return err
	}
	return writeExport(writer, all)
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}
