package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/heart-risk-service/internal/database"
	"github.com/heart-risk-service/internal/domain"
)

// LookupCode is one row of a lookup table
type LookupCode struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// Reader queries a normalized store opened read-only. Readers may be used
// concurrently with each other.
type Reader struct {
	db   *sql.DB
	path string
}

// Open opens the store at path for reading and checks that every table exists.
func Open(ctx context.Context, path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("store %s does not exist: %w", path, domain.ErrQuery)
		}
		return nil, fmt.Errorf("store %s: %v: %w", path, err, domain.ErrQuery)
	}

	db, err := database.OpenSQLite(ctx, path, database.SQLiteOptions{ReadOnly: true, ForeignKeys: true})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %v: %w", path, err, domain.ErrQuery)
	}

	r := &Reader{db: db, path: path}
	if err := r.checkTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Reconstruct opens the store at path and returns every exam as a source row.
func Reconstruct(ctx context.Context, path string) ([]domain.Row, error) {
	r, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.Rows(ctx)
}

// Close closes the underlying database
func (r *Reader) Close() error {
	return r.db.Close()
}

func (r *Reader) checkTables(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return fmt.Errorf("reading catalog of %s: %v: %w", r.path, err, domain.ErrQuery)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("reading catalog of %s: %v: %w", r.path, err, domain.ErrQuery)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading catalog of %s: %v: %w", r.path, err, domain.ErrQuery)
	}

	var missing []string
	for _, table := range Tables() {
		if !present[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("store %s is missing tables %s: %w", r.path, strings.Join(missing, ", "), domain.ErrQuery)
	}
	return nil
}

// Rows joins exams to patients and returns rows in source column order,
// one per exam, ordered by exam id.
func (r *Reader) Rows(ctx context.Context) ([]domain.Row, error) {
	rows, err := r.db.QueryContext(ctx, reconstructQuery)
	if err != nil {
		return nil, fmt.Errorf("reconstructing rows: %v: %w", err, domain.ErrQuery)
	}
	defer rows.Close()

	result := []domain.Row{}
	for rows.Next() {
		var row domain.Row
		err := rows.Scan(
			&row.Age, &row.Sex,
			&row.CP, &row.Trestbps, &row.Chol, &row.Fbs, &row.RestECG,
			&row.Thalach, &row.Exang, &row.Oldpeak, &row.Slope, &row.CA, &row.Thal,
			&row.Target,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %v: %w", err, domain.ErrQuery)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reconstructing rows: %v: %w", err, domain.ErrQuery)
	}
	return result, nil
}

// Lookups lists the codes of one categorical column in ascending order.
func (r *Reader) Lookups(ctx context.Context, column string) ([]LookupCode, error) {
	if _, ok := (domain.Features{}).Categorical(column); !ok {
		return nil, domain.NewValidationError("column", "not a categorical column", column)
	}

	query := fmt.Sprintf("SELECT %s, description FROM %s ORDER BY %s",
		lookupKey(column), LookupTable(column), lookupKey(column))
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %v: %w", LookupTable(column), err, domain.ErrQuery)
	}
	defer rows.Close()

	codes := []LookupCode{}
	for rows.Next() {
		var lc LookupCode
		if err := rows.Scan(&lc.Code, &lc.Description); err != nil {
			return nil, fmt.Errorf("scanning %s: %v: %w", LookupTable(column), err, domain.ErrQuery)
		}
		codes = append(codes, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing %s: %v: %w", LookupTable(column), err, domain.ErrQuery)
	}
	return codes, nil
}

// Counts returns the number of rows in every table of the store.
func (r *Reader) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, table := range Tables() {
		var n int
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %v: %w", table, err, domain.ErrQuery)
		}
		counts[table] = n
	}
	return counts, nil
}

// CheckIntegrity fails if any exam references a missing patient or lookup code.
func (r *Reader) CheckIntegrity(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("checking foreign keys: %v: %w", err, domain.ErrQuery)
	}
	defer rows.Close()

	var violations []string
	for rows.Next() {
		var table, parent string
		var rowid sql.NullInt64
		var fkid int
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("scanning foreign key check: %v: %w", err, domain.ErrQuery)
		}
		violations = append(violations, fmt.Sprintf("%s row %d -> %s", table, rowid.Int64, parent))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("checking foreign keys: %v: %w", err, domain.ErrQuery)
	}

	if len(violations) > 0 {
		return fmt.Errorf("%d referential integrity violations (%s): %w",
			len(violations), strings.Join(violations, "; "), domain.ErrQuery)
	}
	return nil
}
