// Package warehouse normalizes the flat source table into patient, lookup and
// exam tables, and joins them back into the layout the classifier was trained on.
package warehouse

import (
	"fmt"
	"strings"

	"github.com/heart-risk-service/internal/domain"
)

// Table names of the normalized store
const (
	TablePatients = "patients"
	TableExams    = "exams"
)

// LookupTable returns the lookup table name for a categorical column.
func LookupTable(column string) string {
	return "lookup_" + column
}

// lookupKey returns the primary key column of a lookup table.
func lookupKey(column string) string {
	return column + "_code"
}

// LookupDescription is the generated label stored next to each code.
func LookupDescription(column string, code int) string {
	return fmt.Sprintf("%s_%d", column, code)
}

// Tables lists every table of the normalized store, lookups first.
func Tables() []string {
	tables := make([]string, 0, len(domain.CategoricalColumns)+2)
	for _, col := range domain.CategoricalColumns {
		tables = append(tables, LookupTable(col))
	}
	return append(tables, TablePatients, TableExams)
}

// schemaStatements returns the DDL of the normalized store in dependency order.
func schemaStatements() []string {
	statements := make([]string, 0, len(domain.CategoricalColumns)+2)
	for _, col := range domain.CategoricalColumns {
		statements = append(statements, fmt.Sprintf(
			`CREATE TABLE %s (%s INTEGER PRIMARY KEY, description TEXT NOT NULL)`,
			LookupTable(col), lookupKey(col),
		))
	}

	statements = append(statements, `
		CREATE TABLE patients (
			patient_id INTEGER PRIMARY KEY,
			age INTEGER NOT NULL,
			sex INTEGER NOT NULL
		)`)

	var fks []string
	for _, col := range domain.CategoricalColumns {
		fks = append(fks, fmt.Sprintf("FOREIGN KEY(%s) REFERENCES %s(%s)", col, LookupTable(col), lookupKey(col)))
	}

	statements = append(statements, `
		CREATE TABLE exams (
			exam_id INTEGER PRIMARY KEY AUTOINCREMENT,
			patient_id INTEGER NOT NULL,
			cp INTEGER NOT NULL,
			trestbps INTEGER NOT NULL,
			chol INTEGER NOT NULL,
			fbs INTEGER NOT NULL,
			restecg INTEGER NOT NULL,
			thalach INTEGER NOT NULL,
			exang INTEGER NOT NULL,
			oldpeak REAL NOT NULL,
			slope INTEGER NOT NULL,
			ca INTEGER NOT NULL,
			thal INTEGER NOT NULL,
			target INTEGER NOT NULL,
			FOREIGN KEY(patient_id) REFERENCES patients(patient_id),
			`+strings.Join(fks, ",\n\t\t\t")+`
		)`)

	statements = append(statements, `CREATE INDEX idx_exams_patient_id ON exams(patient_id)`)
	return statements
}

// reconstructQuery joins exams back to patients in source column order.
const reconstructQuery = `
	SELECT
		p.age, p.sex,
		e.cp, e.trestbps, e.chol, e.fbs, e.restecg,
		e.thalach, e.exang, e.oldpeak, e.slope, e.ca, e.thal,
		e.target
	FROM exams e
	JOIN patients p ON e.patient_id = p.patient_id
	ORDER BY e.exam_id`
