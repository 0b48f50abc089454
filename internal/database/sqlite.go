package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteOptions controls how a SQLite file is opened
type SQLiteOptions struct {
	ReadOnly    bool
	ForeignKeys bool
	WAL         bool
	// Synchronous is the PRAGMA synchronous level, e.g. "FULL". Empty keeps the default.
	Synchronous string
}

// SQLiteDSN builds a modernc.org/sqlite DSN. Pragmas are passed in the DSN so
// that every pooled connection gets them.
func SQLiteDSN(path string, opts SQLiteOptions) string {
	q := url.Values{}
	if opts.ReadOnly {
		q.Set("mode", "ro")
	}
	q.Add("_pragma", "busy_timeout(5000)")
	if opts.ForeignKeys {
		q.Add("_pragma", "foreign_keys(1)")
	}
	if opts.WAL {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	if opts.Synchronous != "" {
		q.Add("_pragma", fmt.Sprintf("synchronous(%s)", opts.Synchronous))
	}

	return "file:" + path + "?" + q.Encode()
}

// OpenSQLite opens and pings a SQLite database. Writable databases get their
// parent directory created first.
func OpenSQLite(ctx context.Context, path string, opts SQLiteOptions) (*sql.DB, error) {
	if !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", SQLiteDSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
