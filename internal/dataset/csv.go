// Package dataset reads the flat source table and writes reconstructed rows.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/heart-risk-service/internal/domain"
)

// ReadFile reads a source CSV file from disk.
func ReadFile(path string) ([]domain.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source %s: %v: %w", path, err, domain.ErrSchema)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses a source table. The header must name exactly the source
// columns, in any order. Empty cells are rejected.
func ReadCSV(r io.Reader) ([]domain.Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("source table is empty: %w", domain.ErrSchema)
		}
		return nil, fmt.Errorf("reading header: %v: %w", err, domain.ErrSchema)
	}

	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []domain.Row
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %v: %w", line, err, domain.ErrSchema)
		}

		row, err := parseRow(record, index, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// columnIndex maps every source column to its position in the header.
func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	var unknown []string
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q: %w", name, domain.ErrSchema)
		}
		index[name] = i
	}

	expected := make(map[string]bool, len(domain.SourceColumns))
	var missing []string
	for _, col := range domain.SourceColumns {
		expected[col] = true
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	for name := range index {
		if !expected[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns %s: %w", strings.Join(missing, ", "), domain.ErrSchema)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unexpected columns %s: %w", strings.Join(unknown, ", "), domain.ErrSchema)
	}
	return index, nil
}

func parseRow(record []string, index map[string]int, line int) (domain.Row, error) {
	var row domain.Row
	var firstErr error

	cell := func(col string) string {
		return strings.TrimSpace(record[index[col]])
	}
	integer := func(col string) int {
		if firstErr != nil {
			return 0
		}
		raw := cell(col)
		if raw == "" {
			firstErr = fmt.Errorf("line %d: column %s is empty: %w", line, col, domain.ErrSchema)
			return 0
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			firstErr = fmt.Errorf("line %d: column %s: %q is not an integer: %w", line, col, raw, domain.ErrSchema)
		}
		return v
	}

	row.Age = integer(domain.ColAge)
	row.Sex = integer(domain.ColSex)
	row.CP = integer(domain.ColCP)
	row.Trestbps = integer(domain.ColTrestbps)
	row.Chol = integer(domain.ColChol)
	row.Fbs = integer(domain.ColFbs)
	row.RestECG = integer(domain.ColRestECG)
	row.Thalach = integer(domain.ColThalach)
	row.Exang = integer(domain.ColExang)
	row.Slope = integer(domain.ColSlope)
	row.CA = integer(domain.ColCA)
	row.Thal = integer(domain.ColThal)
	row.Target = integer(domain.ColTarget)
	if firstErr != nil {
		return row, firstErr
	}

	raw := cell(domain.ColOldpeak)
	if raw == "" {
		return row, fmt.Errorf("line %d: column %s is empty: %w", line, domain.ColOldpeak, domain.ErrSchema)
	}
	oldpeak, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return row, fmt.Errorf("line %d: column %s: %q is not a number: %w", line, domain.ColOldpeak, raw, domain.ErrSchema)
	}
	row.Oldpeak = oldpeak

	return row, nil
}

// WriteCSV writes rows under the source column header.
func WriteCSV(w io.Writer, rows []domain.Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(domain.SourceColumns); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.Age),
			strconv.Itoa(r.Sex),
			strconv.Itoa(r.CP),
			strconv.Itoa(r.Trestbps),
			strconv.Itoa(r.Chol),
			strconv.Itoa(r.Fbs),
			strconv.Itoa(r.RestECG),
			strconv.Itoa(r.Thalach),
			strconv.Itoa(r.Exang),
			strconv.FormatFloat(r.Oldpeak, 'g', -1, 64),
			strconv.Itoa(r.Slope),
			strconv.Itoa(r.CA),
			strconv.Itoa(r.Thal),
			strconv.Itoa(r.Target),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
