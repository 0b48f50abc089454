package predictionlog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/heart-risk-service/internal/database"
	"github.com/heart-risk-service/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens the log at dbPath, creating the file and schema if they don't exist.
// The database runs in WAL mode with synchronous=FULL so an appended record survives a crash.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := database.OpenSQLite(ctx, dbPath, database.SQLiteOptions{
		WAL:         true,
		Synchronous: "FULL",
	})
	if err != nil {
		return nil, fmt.Errorf("opening prediction log %s: %v: %w", dbPath, err, domain.ErrStore)
	}

	store, err := NewSQLiteStoreFromDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.dbPath = dbPath
	return store, nil
}

// NewSQLiteStoreFromDB wraps an open database and ensures the schema exists.
func NewSQLiteStoreFromDB(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if err := createSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("creating prediction log schema: %v: %w", err, domain.ErrStore)
	}
	return &SQLiteStore{db: db}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row into a Record.
func scanRecord(s scanner) (*Record, error) {
	r := &Record{}
	var timestamp, input string

	if err := s.Scan(&r.ID, &timestamp, &input, &r.Prediction, &r.Probability, &r.Result); err != nil {
		return nil, fmt.Errorf("scanning prediction row: %v: %w", err, domain.ErrStore)
	}

	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %v: %w", timestamp, err, domain.ErrStore)
	}
	r.Timestamp = ts

	if r.Input, err = decodeInput(input); err != nil {
		return nil, err
	}
	return r, nil
}

// createSchema creates the predictions table and index.
func createSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		input_data TEXT NOT NULL,
		prediction INTEGER NOT NULL CHECK (prediction IN (0, 1)),
		probability REAL NOT NULL CHECK (probability >= 0 AND probability <= 1),
		result TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
	`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// Append stores a record and assigns its id and timestamp.
func (s *SQLiteStore) Append(ctx context.Context, record *Record) (int64, error) {
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
	ts = ts.UTC()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (timestamp, input_data, prediction, probability, result)
		VALUES (?, ?, ?, ?, ?)
	`,
		ts.Format(time.RFC3339Nano),
		input,
		record.Prediction,
		record.Probability,
		record.Result,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %v: %w", err, domain.ErrStore)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert ID: %v: %w", err, domain.ErrStore)
	}

	record.ID = id
	record.Timestamp = ts
	return id, nil
}

// Recent returns at most limit records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}
	return s.query(ctx, `
		SELECT id, timestamp, input_data, prediction, probability, result
		FROM predictions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %v: %w", err, domain.ErrStore)
	}
	defer rows.Close()

	result := make([]*Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating predictions: %v: %w", err, domain.ErrStore)
	}
	return result, nil
}

// Count returns the total number of records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %v: %w", err, domain.ErrStore)
	}
	return count, nil
}

// ExportJSON exports every record to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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

// Path returns the database file, empty when wrapping an existing handle
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
