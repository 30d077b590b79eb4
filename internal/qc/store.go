// Package qc tracks quality-control metrics across a study's subjects.
// External QC tools drop per-subject CSVs of metric,value rows; this package
// ingests them into a SQLite database and produces cross-subject summaries
// with outlier flagging.
package qc

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS metrics (
	subject TEXT NOT NULL,
	series  TEXT NOT NULL,
	metric  TEXT NOT NULL,
	value   REAL NOT NULL,
	PRIMARY KEY (subject, series, metric)
);
`

// Store is a SQLite-backed QC metrics database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the QC database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open QC database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize QC schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database. Implements io.Closer.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces one metric value.
func (s *Store) Put(subject, series, metric string, value float64) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO metrics (subject, series, metric, value) VALUES (?, ?, ?, ?)`,
		subject, series, metric, value,
	)
	if err != nil {
		return fmt.Errorf("failed to store metric %s for %s: %w", metric, subject, err)
	}
	return nil
}

// ImportCSV reads metric,value rows for one subject and series.
// A header row whose second column is not numeric is tolerated and skipped.
// Re-importing replaces earlier values (last write wins).
// Returns the number of metrics imported.
func (s *Store) ImportCSV(subject, series string, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	count := 0
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read QC CSV: %w", err)
		}
		line++

		if len(record) < 2 {
			return count, fmt.Errorf("QC CSV line %d: expected metric,value, got %d fields", line, len(record))
		}

		metric := strings.TrimSpace(record[0])
		value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			if line == 1 {
				// header row
				continue
			}
			return count, fmt.Errorf("QC CSV line %d: bad value %q for metric %s", line, record[1], metric)
		}

		if err := s.Put(subject, series, metric, value); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

// SubjectValue is one subject's value for a metric.
type SubjectValue struct {
	Subject string
	Series  string
	Value   float64
}

// Metrics lists the distinct metric names present, sorted.
func (s *Store) Metrics() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT metric FROM metrics ORDER BY metric`)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan metric name: %w", err)
		}
		metrics = append(metrics, m)
	}

	return metrics, rows.Err()
}

// Values returns every subject's value for one metric, ordered by subject
// then series for stable output.
func (s *Store) Values(metric string) ([]SubjectValue, error) {
	rows, err := s.db.Query(
		`SELECT subject, series, value FROM metrics WHERE metric = ? ORDER BY subject, series`,
		metric,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric %s: %w", metric, err)
	}
	defer rows.Close()

	var values []SubjectValue
	for rows.Next() {
		var v SubjectValue
		if err := rows.Scan(&v.Subject, &v.Series, &v.Value); err != nil {
			return nil, fmt.Errorf("failed to scan metric row: %w", err)
		}
		values = append(values, v)
	}

	return values, rows.Err()
}
