package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/heart-risk-service/internal/database"
	"github.com/heart-risk-service/internal/dataset"
	"github.com/heart-risk-service/internal/domain"
)

// BuildReport summarizes a completed build
type BuildReport struct {
	Path     string           `json:"path"`
	Patients int              `json:"patients"`
	Exams    int              `json:"exams"`
	Lookups  map[string][]int `json:"lookups"`
	Duration time.Duration    `json:"duration"`
}

// Builder writes the normalized store. A build replaces any existing store
// at the destination; callers must not run it concurrently with other writers.
type Builder struct {
	logger *logrus.Logger
}

// NewBuilder creates a new schema builder
func NewBuilder(logger *logrus.Logger) *Builder {
	return &Builder{logger: logger}
}

// BuildFromCSV reads the source file and builds the store at dest.
func (b *Builder) BuildFromCSV(ctx context.Context, csvPath, dest string) (*BuildReport, error) {
	rows, err := dataset.ReadFile(csvPath)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, rows, dest)
}

// Build writes rows into a fresh store next to dest and renames it over dest
// once complete. On failure dest is left untouched.
func (b *Builder) Build(ctx context.Context, rows []domain.Row, dest string) (*BuildReport, error) {
	start := time.Now()

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %v: %w", dir, err, domain.ErrSchema)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temporary store: %v: %w", err, domain.ErrSchema)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	report, err := b.write(ctx, rows, tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		os.Remove(tmpPath + "-journal")
		return nil, err
	}

	// CreateTemp opens with 0600; match os.Create.
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("setting permissions on %s: %v: %w", tmpPath, err, domain.ErrSchema)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("replacing %s: %v: %w", dest, err, domain.ErrSchema)
	}

	report.Path = dest
	report.Duration = time.Since(start)

	b.logger.WithFields(logrus.Fields{
		"path":        dest,
		"patients":    report.Patients,
		"exams":       report.Exams,
		"duration_ms": report.Duration.Milliseconds(),
	}).Info("Normalized store built")

	return report, nil
}

func (b *Builder) write(ctx context.Context, rows []domain.Row, path string) (*BuildReport, error) {
	db, err := database.OpenSQLite(ctx, path, database.SQLiteOptions{ForeignKeys: true})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %v: %w", path, err, domain.ErrSchema)
	}

	report, err := populate(ctx, db, rows)
	if closeErr := db.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing store: %v: %w", closeErr, domain.ErrSchema)
	}
	return report, err
}

func populate(ctx context.Context, db *sql.DB, rows []domain.Row) (*BuildReport, error) {
	for _, stmt := range schemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating schema: %v: %w", err, domain.ErrSchema)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %v: %w", err, domain.ErrSchema)
	}
	defer tx.Rollback()

	report := &BuildReport{Lookups: make(map[string][]int, len(domain.CategoricalColumns))}

	for _, col := range domain.CategoricalColumns {
		codes := DistinctCodes(rows, col)
		if err := insertLookup(ctx, tx, col, codes); err != nil {
			return nil, err
		}
		report.Lookups[col] = codes
	}

	patients, err := insertPatients(ctx, tx, rows)
	if err != nil {
		return nil, err
	}
	report.Patients = patients

	if err := insertExams(ctx, tx, rows); err != nil {
		return nil, err
	}
	report.Exams = len(rows)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing store: %v: %w", err, domain.ErrSchema)
	}
	return report, nil
}

// DistinctCodes returns the sorted distinct values of a categorical column.
func DistinctCodes(rows []domain.Row, column string) []int {
	seen := make(map[int]bool)
	codes := []int{}
	for _, r := range rows {
		v, _ := r.Categorical(column)
		if !seen[v] {
			seen[v] = true
			codes = append(codes, v)
		}
	}
	sort.Ints(codes)
	return codes
}

func insertLookup(ctx context.Context, tx *sql.Tx, column string, codes []int) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s, description) VALUES (?, ?)", LookupTable(column), lookupKey(column),
	))
	if err != nil {
		return fmt.Errorf("preparing %s insert: %v: %w", LookupTable(column), err, domain.ErrSchema)
	}
	defer stmt.Close()

	for _, code := range codes {
		if _, err := stmt.ExecContext(ctx, code, LookupDescription(column, code)); err != nil {
			return fmt.Errorf("inserting %s code %d: %v: %w", column, code, err, domain.ErrSchema)
		}
	}
	return nil
}

// insertPatients assigns each row the 1-based row index as its patient id.
// Rows are deduplicated on the whole (id, age, sex) tuple, so distinct rows
// with equal age and sex still become distinct patients.
func insertPatients(ctx context.Context, tx *sql.Tx, rows []domain.Row) (int, error) {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO patients (patient_id, age, sex) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing patients insert: %v: %w", err, domain.ErrSchema)
	}
	defer stmt.Close()

	type patient struct{ id, age, sex int }
	seen := make(map[patient]bool, len(rows))
	for i, r := range rows {
		p := patient{id: i + 1, age: r.Age, sex: r.Sex}
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, err := stmt.ExecContext(ctx, p.id, p.age, p.sex); err != nil {
			return 0, fmt.Errorf("inserting patient %d: %v: %w", p.id, err, domain.ErrSchema)
		}
	}
	return len(seen), nil
}

func insertExams(ctx context.Context, tx *sql.Tx, rows []domain.Row) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO exams (
			patient_id, cp, trestbps, chol, fbs, restecg,
			thalach, exang, oldpeak, slope, ca, thal, target
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing exams insert: %v: %w", err, domain.ErrSchema)
	}
	defer stmt.Close()

	for i, r := range rows {
		_, err := stmt.ExecContext(ctx,
			i+1, r.CP, r.Trestbps, r.Chol, r.Fbs, r.RestECG,
			r.Thalach, r.Exang, r.Oldpeak, r.Slope, r.CA, r.Thal, r.Target,
		)
		if err != nil {
			return fmt.Errorf("inserting exam for row %d: %v: %w", i+1, err, domain.ErrSchema)
		}
	}
	return nil
}
